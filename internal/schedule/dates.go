// Package schedule resolves planned work time from versioned weekly
// schedules, the absence calendar and configured holidays.
package schedule

import (
	"time"

	"github.com/kyukei-panda/timescribe/internal/model"
)

// StartOfDay returns 00:00:00 of the same civil day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDay returns the midnight that ends t's civil day.
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateKey returns the civil date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(model.DateLayout)
}

// WeekStart returns midnight of the first day of the week containing t.
func WeekStart(t time.Time, first time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// WeekRange returns the half-open range [start, end) of the week containing t.
func WeekRange(t time.Time, first time.Weekday) (time.Time, time.Time) {
	start := WeekStart(t, first)
	return start, start.AddDate(0, 0, 7)
}

// MonthRange returns the half-open range of the month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// YearRange returns the half-open range of the year containing t.
func YearRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(1, 0, 0)
}

// Days returns the midnight of every civil day in [start, end).
func Days(start, end time.Time) []time.Time {
	var days []time.Time
	for d := StartOfDay(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
