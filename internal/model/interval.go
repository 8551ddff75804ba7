package model

import (
	"fmt"
	"strings"
	"time"
)

// IntervalType distinguishes work from break time.
type IntervalType string

const (
	IntervalWork  IntervalType = "work"
	IntervalBreak IntervalType = "break"
)

// SourceManual marks intervals recorded by the live timer.
const SourceManual = "manual"

// ParseIntervalType parses a user supplied interval type.
func ParseIntervalType(s string) (IntervalType, bool) {
	switch IntervalType(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalWork:
		return IntervalWork, true
	case IntervalBreak:
		return IntervalBreak, true
	}
	return "", false
}

// Interval is a recorded work or break span. A nil EndedAt means the timer
// is still running.
type Interval struct {
	Key         string       `json:"key"`
	Type        IntervalType `json:"type"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	LastPingAt  time.Time    `json:"last_ping_at,omitempty"`
	Source      string       `json:"source"`
	Description string       `json:"description,omitempty"`
}

// SetKey sets the database key for this interval.
func (i *Interval) SetKey(key string) {
	i.Key = key
}

// GetKey returns the database key for this interval.
func (i *Interval) GetKey() string {
	return i.Key
}

// ID returns the key without its prefix.
func (i *Interval) ID() string {
	return strings.TrimPrefix(i.Key, PrefixInterval+":")
}

// IsOpen returns true if the interval has no end time.
func (i *Interval) IsOpen() bool {
	return i.EndedAt == nil
}

// End returns the end of the interval, treating an open interval as ending at now.
func (i *Interval) End(now time.Time) time.Time {
	if i.EndedAt != nil {
		return *i.EndedAt
	}
	if now.Before(i.StartedAt) {
		return i.StartedAt
	}
	return now
}

// Close ends the interval at the given instant.
func (i *Interval) Close(at time.Time) {
	end := at
	i.EndedAt = &end
}

// Overlaps reports whether the interval intersects [start, end).
func (i *Interval) Overlaps(start, end, now time.Time) bool {
	return i.StartedAt.Before(end) && i.End(now).After(start)
}

// Clipped returns the part of the interval's duration inside [start, end).
func (i *Interval) Clipped(start, end, now time.Time) time.Duration {
	from := i.StartedAt
	if from.Before(start) {
		from = start
	}
	to := i.End(now)
	if to.After(end) {
		to = end
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// Duration returns the full length of the interval.
func (i *Interval) Duration(now time.Time) time.Duration {
	return i.End(now).Sub(i.StartedAt)
}

// GenerateIntervalKey generates a database key for an interval.
func GenerateIntervalKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixInterval, id)
}

// NewInterval creates an open interval of the given type.
func NewInterval(typ IntervalType, start time.Time, source, description string) *Interval {
	if source == "" {
		source = SourceManual
	}
	return &Interval{
		Type:        typ,
		StartedAt:   start,
		LastPingAt:  start,
		Source:      source,
		Description: description,
	}
}
