package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// StatusComponent displays the timer state and the open interval.
type StatusComponent struct {
	State    tracker.State
	Interval *model.Interval
	Now      time.Time
	Location *time.Location
	Width    int
}

// View renders the status component.
func (sc StatusComponent) View() string {
	var content strings.Builder

	box := StyleBox
	switch sc.State {
	case tracker.StateWorking:
		content.WriteString(StyleWorking.Render("● WORKING"))
		box = StyleWorkingBox
	case tracker.StateOnBreak:
		content.WriteString(StyleOnBreak.Render("● ON BREAK"))
		box = StyleBreakBox
	default:
		content.WriteString(StyleStopped.Render("Stopped"))
		content.WriteString("\n")
		content.WriteString(StyleSubtitle.Render("Press 'w' to start working"))
		return box.Width(boxWidth(sc.Width)).Render(content.String())
	}

	if iv := sc.Interval; iv != nil {
		content.WriteString("  ")
		content.WriteString(StyleDuration.Render(output.FormatDuration(iv.Duration(sc.Now))))
		content.WriteString("\n")
		content.WriteString(StyleSubtitle.Render("since " + iv.StartedAt.In(sc.loc()).Format("15:04")))
		if iv.Description != "" {
			content.WriteString("\n")
			content.WriteString(StyleNote.Render(fmt.Sprintf("%q", iv.Description)))
		}
	}
	return box.Width(boxWidth(sc.Width)).Render(content.String())
}

func (sc StatusComponent) loc() *time.Location {
	if sc.Location == nil {
		return time.Local
	}
	return sc.Location
}

// SummaryComponent displays the aggregates of a day or week.
type SummaryComponent struct {
	Title   string
	Summary *balance.Summary
	Width   int
}

// View renders the summary with a progress bar of work against plan.
func (c SummaryComponent) View() string {
	var content strings.Builder
	content.WriteString(StyleTitle.Render(c.Title))
	content.WriteString("\n")

	s := c.Summary
	if s == nil {
		content.WriteString(StyleSubtitle.Render("No data"))
		return StyleBox.Width(boxWidth(c.Width)).Render(content.String())
	}

	row := func(label, value string) {
		content.WriteString(StyleLabel.Render(label))
		content.WriteString(value)
		content.WriteString("\n")
	}
	row("Work", StyleDuration.Render(output.FormatSeconds(s.WorkSeconds)))
	row("Break", output.FormatSeconds(s.BreakSeconds))
	row("Plan", output.FormatSeconds(s.PlanSeconds))
	row("Balance", balanceStyle(s.BalanceSeconds).Render(output.FormatBalance(s.BalanceSeconds)))

	content.WriteString(ProgressBar(Progress(s), max(boxWidth(c.Width)-14, 10)))
	content.WriteString(fmt.Sprintf(" %.0f%%", Progress(s)))
	return StyleBox.Width(boxWidth(c.Width)).Render(content.String())
}

// Progress returns work as a percentage of plan. A day without plan counts
// as complete once any work was done.
func Progress(s *balance.Summary) float64 {
	if s == nil {
		return 0
	}
	if s.PlanSeconds <= 0 {
		if s.WorkSeconds > 0 {
			return 100
		}
		return 0
	}
	return float64(s.WorkSeconds) / float64(s.PlanSeconds) * 100
}

// HelpBar renders the key bindings.
func HelpBar() string {
	keys := []struct {
		key  string
		desc string
	}{
		{"w", "work"},
		{"b", "break"},
		{"s", "stop"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, StyleHelpKey.Render(k.key)+" "+StyleHelpDesc.Render(k.desc))
	}
	return StyleHelp.Render(strings.Join(parts, "  •  "))
}

func boxWidth(width int) int {
	return max(width-4, 20)
}

// sideBySide joins two boxes horizontally when the terminal is wide enough.
func sideBySide(width int, left, right string) string {
	if width >= 2*lipgloss.Width(left)+2 {
		return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	}
	return lipgloss.JoinVertical(lipgloss.Left, left, right)
}
