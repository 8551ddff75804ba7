package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyukei-panda/timescribe/internal/model"
)

var (
	one            = decimal.NewFromInt(1)
	secondsPerHour = decimal.NewFromInt(3600)
)

// Options configures a Resolver.
type Options struct {
	// Fallback is the planned hours of each Monday to Friday not covered by a
	// schedule. Uncovered weekends plan nothing.
	Fallback decimal.Decimal
	// Holidays holds civil dates (YYYY-MM-DD) whose plan is zero.
	Holidays []string
	// WeekStart is the first day of a week.
	WeekStart time.Weekday
}

// Resolver answers "how many hours were planned on this date". It is built
// once from a snapshot of schedules and absences and is safe for concurrent
// reads.
type Resolver struct {
	schedules []*model.WorkSchedule
	validFrom []string
	absences  map[string]decimal.Decimal
	holidays  map[string]bool
	fallback  decimal.Decimal
	weekStart time.Weekday
}

// NewResolver indexes the schedules by ValidFrom and the absences by date.
func NewResolver(schedules []*model.WorkSchedule, absences []*model.Absence, opts Options) *Resolver {
	sorted := make([]*model.WorkSchedule, len(schedules))
	copy(sorted, schedules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return DateKey(sorted[i].ValidFrom) < DateKey(sorted[j].ValidFrom)
	})

	r := &Resolver{
		schedules: sorted,
		validFrom: make([]string, len(sorted)),
		absences:  make(map[string]decimal.Decimal),
		holidays:  make(map[string]bool, len(opts.Holidays)),
		fallback:  opts.Fallback,
		weekStart: opts.WeekStart,
	}
	for i, s := range sorted {
		r.validFrom[i] = DateKey(s.ValidFrom)
	}
	for _, a := range absences {
		key := a.DateString()
		r.absences[key] = r.absences[key].Add(a.Duration)
	}
	for _, h := range opts.Holidays {
		r.holidays[h] = true
	}
	return r
}

// ScheduleOn returns the schedule version in force on date, or nil when no
// version starts on or before it.
func (r *Resolver) ScheduleOn(date time.Time) *model.WorkSchedule {
	key := DateKey(date)
	// first version starting after date; its predecessor applies
	i := sort.Search(len(r.validFrom), func(i int) bool {
		return r.validFrom[i] > key
	})
	if i == 0 {
		return nil
	}
	return r.schedules[i-1]
}

// PlanFor returns the scheduled hours for date's weekday, before absences
// and holidays.
func (r *Resolver) PlanFor(date time.Time) decimal.Decimal {
	s := r.ScheduleOn(date)
	if s == nil {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return decimal.Zero
		}
		return r.fallback
	}
	return s.HoursOn(date.Weekday())
}

// AbsenceOn returns the summed absence fraction for date, capped at one day.
func (r *Resolver) AbsenceOn(date time.Time) decimal.Decimal {
	total := r.absences[DateKey(date)]
	if total.GreaterThan(one) {
		return one
	}
	return total
}

// IsHoliday reports whether date is a configured holiday.
func (r *Resolver) IsHoliday(date time.Time) bool {
	return r.holidays[DateKey(date)]
}

// DayPlan returns the planned hours for date after absences and holidays.
func (r *Resolver) DayPlan(date time.Time) decimal.Decimal {
	if r.IsHoliday(date) {
		return decimal.Zero
	}
	hours := r.PlanFor(date)
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return hours.Mul(one.Sub(r.AbsenceOn(date)))
}

// WeekPlan sums DayPlan over the seven days of the week containing date.
func (r *Resolver) WeekPlan(date time.Time) decimal.Decimal {
	start := WeekStart(date, r.weekStart)
	total := decimal.Zero
	for i := 0; i < 7; i++ {
		total = total.Add(r.DayPlan(start.AddDate(0, 0, i)))
	}
	return total
}

// PlanSeconds returns the planned time of every civil day in [from, to) in
// whole seconds.
func (r *Resolver) PlanSeconds(from, to time.Time) int64 {
	total := decimal.Zero
	for _, day := range Days(from, to) {
		total = total.Add(r.DayPlan(day))
	}
	return HoursToSeconds(total)
}

// WeekStartDay returns the configured first day of the week.
func (r *Resolver) WeekStartDay() time.Weekday {
	return r.weekStart
}

// HoursToSeconds converts decimal hours to whole seconds, rounding half away
// from zero.
func HoursToSeconds(hours decimal.Decimal) int64 {
	return hours.Mul(secondsPerHour).Round(0).IntPart()
}
