package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WorkSchedule is a versioned weekly template of planned hours. Hours is
// indexed by time.Weekday, so Hours[time.Sunday] is Sunday.
type WorkSchedule struct {
	Key       string             `json:"key"`
	ValidFrom time.Time          `json:"valid_from"`
	Hours     [7]decimal.Decimal `json:"hours"`
}

// SetKey sets the database key for this schedule.
func (s *WorkSchedule) SetKey(key string) {
	s.Key = key
}

// GetKey returns the database key for this schedule.
func (s *WorkSchedule) GetKey() string {
	return s.Key
}

// ID returns the key without its prefix.
func (s *WorkSchedule) ID() string {
	return strings.TrimPrefix(s.Key, PrefixSchedule+":")
}

// HoursOn returns the planned hours for the given weekday.
func (s *WorkSchedule) HoursOn(day time.Weekday) decimal.Decimal {
	return s.Hours[day]
}

// WeeklyHours returns the sum over all seven weekdays.
func (s *WorkSchedule) WeeklyHours() decimal.Decimal {
	total := decimal.Zero
	for _, h := range s.Hours {
		total = total.Add(h)
	}
	return total
}

// GenerateScheduleKey generates a database key for a schedule.
func GenerateScheduleKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixSchedule, id)
}

// NewWorkSchedule creates a schedule valid from the given date. The hours are
// given Monday first, which is how users think about a working week.
func NewWorkSchedule(validFrom time.Time, mondayFirst [7]decimal.Decimal) *WorkSchedule {
	s := &WorkSchedule{ValidFrom: validFrom}
	for i, h := range mondayFirst {
		s.Hours[(i+1)%7] = h
	}
	return s
}
