package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/storage"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// Styles for CLI output.
var (
	// Colors
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorBreak   = lipgloss.Color("#3B82F6") // Blue
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorWarning = lipgloss.Color("#F59E0B") // Yellow
	colorError   = lipgloss.Color("#EF4444") // Red
	colorSuccess = lipgloss.Color("#10B981") // Green

	// Styles
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleWork = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	styleBreak = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBreak)

	styleDuration = lipgloss.NewStyle().
			Bold(true)
)

// Status is the current timer state together with today's and this
// week's figures.
type Status struct {
	State    tracker.State    `json:"state"`
	Interval *model.Interval  `json:"interval,omitempty"`
	Now      time.Time        `json:"now"`
	Today    *balance.Summary `json:"today,omitempty"`
	Week     *balance.Summary `json:"week,omitempty"`
}

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// Duration formats a duration.
func (c *CLIFormatter) Duration(text string) string {
	return c.render(styleDuration, text)
}

// Balance formats signed seconds, green when positive and red when negative.
func (c *CLIFormatter) Balance(s int64) string {
	text := FormatBalance(s)
	switch {
	case s > 0:
		return c.render(styleSuccess, text)
	case s < 0:
		return c.render(styleError, text)
	default:
		return text
	}
}

// StateName formats a timer state.
func (c *CLIFormatter) StateName(s tracker.State) string {
	switch s {
	case tracker.StateWorking:
		return c.render(styleWork, "WORKING")
	case tracker.StateOnBreak:
		return c.render(styleBreak, "ON BREAK")
	default:
		return c.render(styleMuted, "STOPPED")
	}
}

// PrintStatus prints the current timer state.
func (c *CLIFormatter) PrintStatus(s *Status) {
	c.Printf("%s\n", c.StateName(s.State))
	if s.Interval != nil {
		c.Printf("  Since: %s (%s)\n", c.Time(s.Interval.StartedAt),
			c.Duration(FormatDuration(s.Interval.Duration(s.Now).Truncate(time.Second))))
		if s.Interval.Description != "" {
			c.Printf("  Note: %s\n", s.Interval.Description)
		}
	} else {
		c.Muted("Use 'timescribe start' to begin tracking.")
	}

	if s.Today != nil {
		c.Printf("  Today: %s worked, %s break, %s planned, balance %s\n",
			FormatSeconds(s.Today.WorkSeconds), FormatSeconds(s.Today.BreakSeconds),
			FormatSeconds(s.Today.PlanSeconds), c.Balance(s.Today.BalanceSeconds))
	}
	if s.Week != nil {
		c.Printf("  Week:  %s worked of %s, balance %s\n",
			FormatSeconds(s.Week.WorkSeconds), FormatSeconds(s.Week.PlanSeconds),
			c.Balance(s.Week.BalanceSeconds))
	}
}

// PrintTransition prints the outcome of a timer transition.
func (c *CLIFormatter) PrintTransition(tr *tracker.Transition, now time.Time) {
	for _, iv := range tr.Closed {
		if iv.EndedAt == nil {
			continue
		}
		c.Printf("Closed %s interval %s - %s (%s)\n", iv.Type,
			c.Clock(iv.StartedAt), c.Clock(*iv.EndedAt),
			c.Duration(FormatDuration(iv.Duration(now).Truncate(time.Second))))
	}
	if len(tr.Closed) > 1 {
		c.Warning(fmt.Sprintf("%d intervals were open, all were closed", len(tr.Closed)))
	}

	switch {
	case tr.Started != nil:
		c.Success(fmt.Sprintf("%s at %s", c.StateName(tr.To), c.Clock(tr.Started.StartedAt)))
	case tr.Current != nil:
		c.Muted(fmt.Sprintf("Already %s since %s.", c.StateName(tr.To), c.Clock(tr.Current.StartedAt)))
	case tr.From == tracker.StateStopped:
		c.Muted("Timer was not running.")
	default:
		c.Success("Stopped")
	}
}

// PrintSummary prints a period summary with one row per day.
func (c *CLIFormatter) PrintSummary(s *balance.Summary) {
	last := s.End.AddDate(0, 0, -1)
	if s.Period == balance.PeriodDay {
		c.Title(fmt.Sprintf("Day %s", c.Date(s.Start)))
	} else {
		c.Title(fmt.Sprintf("%s %s - %s", strings.ToUpper(s.Period[:1])+s.Period[1:], c.Date(s.Start), c.Date(last)))
	}

	if s.Period != balance.PeriodDay && len(s.Days) <= 31 {
		rows := make([]TableRow, 0, len(s.Days))
		for _, d := range s.Days {
			note := d.Absence
			if d.Holiday {
				note = "holiday"
			}
			if d.ActiveWork {
				note = strings.TrimSpace(note + " active")
			}
			rows = append(rows, TableRow{Columns: []string{
				d.Date.Format("Mon 01-02"),
				FormatSeconds(d.WorkSeconds),
				FormatSeconds(d.BreakSeconds),
				FormatSeconds(d.PlanSeconds),
				FormatBalance(d.BalanceSeconds),
				note,
			}})
		}
		c.PrintTable([]string{"Day", "Work", "Break", "Plan", "Balance", "Note"}, rows)
		c.Println("")
	}

	c.Printf("  Work:     %s\n", c.Duration(FormatSeconds(s.WorkSeconds)))
	c.Printf("  Break:    %s\n", FormatSeconds(s.BreakSeconds))
	c.Printf("  Plan:     %s\n", FormatSeconds(s.PlanSeconds))
	c.Printf("  Counted:  %s\n", FormatSeconds(s.CountedSeconds))
	c.Printf("  Overtime: %s\n", FormatSeconds(s.OvertimeSeconds))
	c.Printf("  Balance:  %s\n", c.Balance(s.BalanceSeconds))
	if s.NoWorkSeconds > 0 {
		c.Printf("  Untracked gaps: %s\n", FormatSeconds(s.NoWorkSeconds))
	}
}

// PrintImport prints an import result.
func (c *CLIFormatter) PrintImport(res *importer.Result) {
	if res.DryRun {
		c.Title(fmt.Sprintf("Dry Run - %s Import Preview", res.Source))
	} else {
		c.Title(fmt.Sprintf("Importing %s Data", res.Source))
	}

	for _, re := range res.RowErrors {
		c.Warning(re.Error())
	}

	rows := make([]TableRow, 0, len(res.Intervals))
	for _, iv := range res.Intervals {
		rows = append(rows, TableRow{Columns: []string{
			c.Date(iv.StartedAt),
			c.Clock(iv.StartedAt) + " - " + c.Clock(*iv.EndedAt),
			FormatDuration(iv.Duration(*iv.EndedAt).Truncate(time.Second)),
			iv.Description,
		}})
	}
	c.PrintTable([]string{"Date", "Time", "Duration", "Description"}, rows)

	c.Println("")
	if res.DryRun {
		c.Printf("Would import:\n")
	} else {
		c.Success("Import complete")
	}
	c.Printf("  Rows:      %d\n", res.Parsed)
	c.Printf("  Skipped:   %d\n", res.Skipped)
	c.Printf("  Dropped:   %d\n", res.Dropped)
	c.Printf("  Intervals: %d\n", len(res.Intervals))
}

// PrintIntervals prints ledger entries.
func (c *CLIFormatter) PrintIntervals(ivs []*model.Interval, now time.Time) {
	if len(ivs) == 0 {
		c.Muted("No intervals recorded.")
		return
	}
	rows := make([]TableRow, 0, len(ivs))
	for _, iv := range ivs {
		end := "running"
		if iv.EndedAt != nil {
			end = c.Clock(*iv.EndedAt)
		}
		rows = append(rows, TableRow{Columns: []string{
			iv.ID(),
			string(iv.Type),
			c.Date(iv.StartedAt),
			c.Clock(iv.StartedAt) + " - " + end,
			FormatDuration(iv.Duration(now).Truncate(time.Second)),
			iv.Source,
			iv.Description,
		}})
	}
	c.PrintTable([]string{"ID", "Type", "Date", "Time", "Duration", "Source", "Description"}, rows)
}

// PrintSchedules prints the schedule versions, newest last.
func (c *CLIFormatter) PrintSchedules(schedules []*model.WorkSchedule) {
	if len(schedules) == 0 {
		c.Muted("No work schedule defined, the fallback applies Monday to Friday.")
		return
	}
	rows := make([]TableRow, 0, len(schedules))
	for _, s := range schedules {
		cols := []string{s.ID(), s.ValidFrom.Format(model.DateLayout)}
		for _, d := range mondayFirst {
			cols = append(cols, s.HoursOn(d).String())
		}
		cols = append(cols, s.WeeklyHours().String())
		rows = append(rows, TableRow{Columns: cols})
	}
	c.PrintTable([]string{"ID", "Valid from", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun", "Week"}, rows)
}

var mondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// PrintAbsences prints absences.
func (c *CLIFormatter) PrintAbsences(absences []*model.Absence) {
	if len(absences) == 0 {
		c.Muted("No absences recorded.")
		return
	}
	rows := make([]TableRow, 0, len(absences))
	for _, a := range absences {
		rows = append(rows, TableRow{Columns: []string{
			a.ID(), a.DateString(), string(a.Type), a.Duration.String(), a.Note,
		}})
	}
	c.PrintTable([]string{"ID", "Date", "Type", "Days", "Note"}, rows)
}

// PrintBalances prints the stored weekly balances and their running total.
func (c *CLIFormatter) PrintBalances(rows []*model.WeekBalance) {
	if len(rows) == 0 {
		c.Muted("No weekly balances yet. Run 'timescribe recompute'.")
		return
	}
	var total int64
	table := make([]TableRow, 0, len(rows))
	for _, wb := range rows {
		total += wb.Balance
		table = append(table, TableRow{Columns: []string{
			wb.StartWeekAt.Format(model.DateLayout) + " - " + wb.EndWeekAt.Format(model.DateLayout),
			FormatSeconds(wb.WorkSeconds),
			FormatSeconds(wb.PlanSeconds),
			FormatBalance(wb.Balance),
			FormatBalance(total),
		}})
	}
	c.PrintTable([]string{"Week", "Work", "Plan", "Balance", "Total"}, table)
}

// PrintRecompute prints a recompute summary.
func (c *CLIFormatter) PrintRecompute(res *balance.RecomputeResult) {
	if res.Weeks == 0 {
		c.Success(fmt.Sprintf("No intervals, removed %d weekly balances", res.Deleted))
		return
	}
	c.Success(fmt.Sprintf("Recomputed %d weeks (%s - %s), removed %d stale rows",
		res.Weeks, c.Date(res.From), c.Date(res.To.AddDate(0, 0, -1)), res.Deleted))
}

// PrintIntegrity prints a database health check.
func (c *CLIFormatter) PrintIntegrity(s *storage.IntegrityStatus) {
	if s.Healthy {
		c.Success(fmt.Sprintf("Database healthy: %d records, %d open intervals", s.Records, s.OpenIntervals))
		return
	}
	c.Error(fmt.Sprintf("Database has %d problems", len(s.Errors)))
	for _, e := range s.Errors {
		c.Printf("  - %s\n", e)
	}
}

// ProgressBar creates a simple progress bar.
func ProgressBar(percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filled := int(float64(width) * percentage / 100)
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return bar
}

// TableRow holds the cells of one table row.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple table.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	// Print headers
	var headerLine strings.Builder
	for i, h := range headers {
		headerLine.WriteString(fmt.Sprintf("%-*s  ", widths[i], h))
	}
	c.Println(c.render(styleBold, strings.TrimRight(headerLine.String(), " ")))

	// Print separator
	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(strings.TrimRight(sep.String(), " "))

	// Print rows
	for _, row := range rows {
		var rowLine strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				rowLine.WriteString(fmt.Sprintf("%-*s  ", widths[i], col))
			}
		}
		c.Println(strings.TrimRight(rowLine.String(), " "))
	}
}
