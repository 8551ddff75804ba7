// Package balance derives work time, break time, planned time, overtime and
// signed balances from the interval ledger, the work schedules and the
// absence calendar.
package balance

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// IntervalSource is the read side of the interval ledger.
type IntervalSource interface {
	ListOverlapping(start, end, now time.Time) ([]*model.Interval, error)
	GetOpen() (*model.Interval, error)
	Earliest() (*model.Interval, error)
}

// ScheduleSource lists the work schedule versions.
type ScheduleSource interface {
	List() ([]*model.WorkSchedule, error)
}

// AbsenceSource lists absences by civil date.
type AbsenceSource interface {
	ListBetween(from, to time.Time) ([]*model.Absence, error)
}

// Options configures an Engine.
type Options struct {
	// Location is the time zone civil days are cut in. Defaults to time.Local.
	Location *time.Location
	// WeekStart is the first day of a week.
	WeekStart time.Weekday
	// Fallback is the planned hours per weekday when no schedule applies.
	Fallback decimal.Decimal
	// Holidays holds civil dates (YYYY-MM-DD) with no planned work.
	Holidays []string
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Engine computes aggregates on demand. It holds no state besides its
// sources and options, so every query reflects the current ledger.
type Engine struct {
	intervals IntervalSource
	schedules ScheduleSource
	absences  AbsenceSource
	opts      Options
}

// NewEngine creates a balance engine.
func NewEngine(intervals IntervalSource, schedules ScheduleSource, absences AbsenceSource, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		intervals: intervals,
		schedules: schedules,
		absences:  absences,
		opts:      opts,
	}
}

// Now returns the engine's clock reading in its location.
func (e *Engine) Now() time.Time {
	return e.opts.Now().In(e.opts.Location)
}

// Location returns the time zone civil days are cut in.
func (e *Engine) Location() *time.Location {
	return e.opts.Location
}

// WeekStartDay returns the configured first day of the week.
func (e *Engine) WeekStartDay() time.Weekday {
	return e.opts.WeekStart
}

func (e *Engine) local(t time.Time) time.Time {
	return t.In(e.opts.Location)
}

// Resolver loads the schedules and the absences in [from, to) and indexes them.
func (e *Engine) Resolver(ctx context.Context, from, to time.Time) (*schedule.Resolver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	schedules, err := e.schedules.List()
	if err != nil {
		return nil, err
	}
	absences, err := e.absences.ListBetween(e.local(from), e.local(to))
	if err != nil {
		return nil, err
	}
	return schedule.NewResolver(schedules, absences, schedule.Options{
		Fallback:  e.opts.Fallback,
		Holidays:  e.opts.Holidays,
		WeekStart: e.opts.WeekStart,
	}), nil
}

func (e *Engine) load(ctx context.Context, start, end, now time.Time) ([]*model.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.intervals.ListOverlapping(start, end, now)
}

// WorkTime returns the seconds of WORK inside [start, end). Intervals crossing
// a boundary count only their clipped part; an open interval ends at now.
func (e *Engine) WorkTime(ctx context.Context, start, end time.Time) (int64, error) {
	return e.timeOf(ctx, model.IntervalWork, start, end)
}

// BreakTime returns the seconds of BREAK inside [start, end).
func (e *Engine) BreakTime(ctx context.Context, start, end time.Time) (int64, error) {
	return e.timeOf(ctx, model.IntervalBreak, start, end)
}

func (e *Engine) timeOf(ctx context.Context, typ model.IntervalType, start, end time.Time) (int64, error) {
	now := e.Now()
	ivs, err := e.load(ctx, start, end, now)
	if err != nil {
		return 0, err
	}
	return clippedSeconds(ivs, typ, start, end, now), nil
}

func clippedSeconds(ivs []*model.Interval, typ model.IntervalType, start, end, now time.Time) int64 {
	var total time.Duration
	for _, iv := range ivs {
		if iv.Type == typ {
			total += iv.Clipped(start, end, now)
		}
	}
	return int64(total / time.Second)
}

// ActiveWork reports whether an open WORK interval overlaps the civil day of date.
func (e *Engine) ActiveWork(ctx context.Context, date time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	open, err := e.intervals.GetOpen()
	if err != nil || open == nil {
		return false, err
	}
	day := schedule.StartOfDay(e.local(date))
	return activeOn([]*model.Interval{open}, day, schedule.NextDay(day), e.Now()), nil
}

func activeOn(ivs []*model.Interval, start, end, now time.Time) bool {
	for _, iv := range ivs {
		if !iv.IsOpen() || iv.Type != model.IntervalWork {
			continue
		}
		// a timer started this instant has zero length but is still running
		if iv.Overlaps(start, end, now) || (!iv.StartedAt.Before(start) && iv.StartedAt.Before(end)) {
			return true
		}
	}
	return false
}

// NoWorkTime returns the untracked seconds between the first and the last
// recorded interval of date's civil day. Time before the first and after the
// last interval is not counted.
func (e *Engine) NoWorkTime(ctx context.Context, date time.Time) (int64, error) {
	day := schedule.StartOfDay(e.local(date))
	next := schedule.NextDay(day)
	now := e.Now()
	ivs, err := e.load(ctx, day, next, now)
	if err != nil {
		return 0, err
	}
	return gapSeconds(ivs, day, next, now), nil
}

type span struct {
	start, end time.Time
}

func gapSeconds(ivs []*model.Interval, start, end, now time.Time) int64 {
	var spans []span
	for _, iv := range ivs {
		if !iv.Overlaps(start, end, now) {
			continue
		}
		s, en := iv.StartedAt, iv.End(now)
		if s.Before(start) {
			s = start
		}
		if en.After(end) {
			en = end
		}
		if en.After(s) {
			spans = append(spans, span{s, en})
		}
	}
	if len(spans) < 2 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var gaps time.Duration
	reach := spans[0].end
	for _, sp := range spans[1:] {
		if sp.start.After(reach) {
			gaps += sp.start.Sub(reach)
		}
		if sp.end.After(reach) {
			reach = sp.end
		}
	}
	return int64(gaps / time.Second)
}

// CurrentType returns the type of the open interval, or nil when the timer
// is stopped.
func (e *Engine) CurrentType(ctx context.Context) (*model.IntervalType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	open, err := e.intervals.GetOpen()
	if err != nil || open == nil {
		return nil, err
	}
	typ := open.Type
	return &typ, nil
}

// Overtime returns the work beyond plan, never negative.
func Overtime(work, plan int64) int64 {
	if work > plan {
		return work - plan
	}
	return 0
}

// CountedWork returns the part of work that counts toward plan.
func CountedWork(work, plan int64) int64 {
	if work < plan {
		return work
	}
	return plan
}

// WeekBalance returns the signed balance of the week containing date:
// work time minus planned time, in seconds.
func (e *Engine) WeekBalance(ctx context.Context, date time.Time) (int64, error) {
	start, end := schedule.WeekRange(e.local(date), e.opts.WeekStart)
	work, err := e.WorkTime(ctx, start, end)
	if err != nil {
		return 0, err
	}
	r, err := e.Resolver(ctx, start, end)
	if err != nil {
		return 0, err
	}
	return work - schedule.HoursToSeconds(r.WeekPlan(start)), nil
}
