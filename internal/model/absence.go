package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AbsenceType represents the reason for an absence.
type AbsenceType string

const (
	AbsenceVacation AbsenceType = "vacation"
	AbsenceSick     AbsenceType = "sick"
)

// ParseAbsenceType parses a user supplied absence type.
func ParseAbsenceType(s string) (AbsenceType, bool) {
	switch AbsenceType(strings.ToLower(strings.TrimSpace(s))) {
	case AbsenceVacation:
		return AbsenceVacation, true
	case AbsenceSick:
		return AbsenceSick, true
	}
	return "", false
}

// Absence reduces the planned work time of a single day. Duration is a
// fraction of a day in (0, 1].
type Absence struct {
	Key      string          `json:"key"`
	Type     AbsenceType     `json:"type"`
	Date     time.Time       `json:"date"`
	Duration decimal.Decimal `json:"duration"`
	Note     string          `json:"note,omitempty"`
}

// SetKey sets the database key for this absence.
func (a *Absence) SetKey(key string) {
	a.Key = key
}

// GetKey returns the database key for this absence.
func (a *Absence) GetKey() string {
	return a.Key
}

// ID returns the key without its prefix.
func (a *Absence) ID() string {
	return strings.TrimPrefix(a.Key, PrefixAbsence+":")
}

// DateString returns the civil date of the absence.
func (a *Absence) DateString() string {
	return a.Date.Format(DateLayout)
}

// ValidDuration reports whether the duration is within (0, 1].
func ValidDuration(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

// GenerateAbsenceKey generates a database key for an absence.
func GenerateAbsenceKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixAbsence, id)
}

// NewAbsence creates a new absence entry.
func NewAbsence(typ AbsenceType, date time.Time, duration decimal.Decimal, note string) *Absence {
	return &Absence{
		Type:     typ,
		Date:     date,
		Duration: duration,
		Note:     note,
	}
}
