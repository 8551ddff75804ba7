package balance

import (
	"context"
	"time"

	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// DaySummary holds the aggregates of one civil day.
type DaySummary struct {
	Date            time.Time `json:"date"`
	WorkSeconds     int64     `json:"work_seconds"`
	BreakSeconds    int64     `json:"break_seconds"`
	PlanSeconds     int64     `json:"plan_seconds"`
	CountedSeconds  int64     `json:"counted_seconds"`
	OvertimeSeconds int64     `json:"overtime_seconds"`
	BalanceSeconds  int64     `json:"balance_seconds"`
	NoWorkSeconds   int64     `json:"no_work_seconds"`
	Absence         string    `json:"absence"`
	Holiday         bool      `json:"holiday"`
	ActiveWork      bool      `json:"active_work"`
}

// Summary holds the aggregates of a day, week, month or year. Counted work
// and overtime are computed on the period totals, not summed per day, so
// they always add up to WorkSeconds.
type Summary struct {
	Period          string       `json:"period"`
	Start           time.Time    `json:"start"`
	End             time.Time    `json:"end"`
	WorkSeconds     int64        `json:"work_seconds"`
	BreakSeconds    int64        `json:"break_seconds"`
	PlanSeconds     int64        `json:"plan_seconds"`
	CountedSeconds  int64        `json:"counted_seconds"`
	OvertimeSeconds int64        `json:"overtime_seconds"`
	BalanceSeconds  int64        `json:"balance_seconds"`
	NoWorkSeconds   int64        `json:"no_work_seconds"`
	Days            []DaySummary `json:"days"`
}

// Period names.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// Day summarizes the civil day containing date.
func (e *Engine) Day(ctx context.Context, date time.Time) (*Summary, error) {
	start := schedule.StartOfDay(e.local(date))
	return e.summarize(ctx, PeriodDay, start, schedule.NextDay(start))
}

// Week summarizes the week containing date.
func (e *Engine) Week(ctx context.Context, date time.Time) (*Summary, error) {
	start, end := schedule.WeekRange(e.local(date), e.opts.WeekStart)
	return e.summarize(ctx, PeriodWeek, start, end)
}

// Month summarizes the month containing date.
func (e *Engine) Month(ctx context.Context, date time.Time) (*Summary, error) {
	start, end := schedule.MonthRange(e.local(date))
	return e.summarize(ctx, PeriodMonth, start, end)
}

// Year summarizes the year containing date.
func (e *Engine) Year(ctx context.Context, date time.Time) (*Summary, error) {
	start, end := schedule.YearRange(e.local(date))
	return e.summarize(ctx, PeriodYear, start, end)
}

// Summarize dispatches on a period name.
func (e *Engine) Summarize(ctx context.Context, period string, date time.Time) (*Summary, error) {
	switch period {
	case PeriodWeek:
		return e.Week(ctx, date)
	case PeriodMonth:
		return e.Month(ctx, date)
	case PeriodYear:
		return e.Year(ctx, date)
	default:
		return e.Day(ctx, date)
	}
}

func (e *Engine) summarize(ctx context.Context, period string, start, end time.Time) (*Summary, error) {
	now := e.Now()
	ivs, err := e.load(ctx, start, end, now)
	if err != nil {
		return nil, err
	}
	r, err := e.Resolver(ctx, start, end)
	if err != nil {
		return nil, err
	}

	s := &Summary{Period: period, Start: start, End: end}
	for _, day := range schedule.Days(start, end) {
		next := schedule.NextDay(day)
		ds := daySummary(ivs, r, day, next, now)
		s.WorkSeconds += ds.WorkSeconds
		s.BreakSeconds += ds.BreakSeconds
		s.PlanSeconds += ds.PlanSeconds
		s.NoWorkSeconds += ds.NoWorkSeconds
		s.Days = append(s.Days, ds)
	}
	s.CountedSeconds = CountedWork(s.WorkSeconds, s.PlanSeconds)
	s.OvertimeSeconds = Overtime(s.WorkSeconds, s.PlanSeconds)
	s.BalanceSeconds = s.WorkSeconds - s.PlanSeconds
	return s, nil
}

func daySummary(ivs []*model.Interval, r *schedule.Resolver, day, next, now time.Time) DaySummary {
	ds := DaySummary{
		Date:          day,
		WorkSeconds:   clippedSeconds(ivs, model.IntervalWork, day, next, now),
		BreakSeconds:  clippedSeconds(ivs, model.IntervalBreak, day, next, now),
		PlanSeconds:   schedule.HoursToSeconds(r.DayPlan(day)),
		NoWorkSeconds: gapSeconds(ivs, day, next, now),
		Holiday:       r.IsHoliday(day),
		ActiveWork:    activeOn(ivs, day, next, now),
	}
	if a := r.AbsenceOn(day); a.IsPositive() {
		ds.Absence = a.String()
	}
	ds.CountedSeconds = CountedWork(ds.WorkSeconds, ds.PlanSeconds)
	ds.OvertimeSeconds = Overtime(ds.WorkSeconds, ds.PlanSeconds)
	ds.BalanceSeconds = ds.WorkSeconds - ds.PlanSeconds
	return ds
}
