// Package parser parses user supplied timestamps, dates and hour values.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// Clock anchors relative expressions such as "10 minutes ago".
type Clock struct {
	Now       time.Time
	Location  *time.Location
	WeekStart time.Weekday
}

func (c Clock) now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	if c.Now.IsZero() {
		return time.Now().In(loc)
	}
	return c.Now.In(loc)
}

// periodRegex matches period expressions like "this week", "last month".
var periodRegex = regexp.MustCompile(`(?i)^(this|current|last|previous)\s+(day|week|month|year)$`)

// ParseTimestamp parses a natural language timestamp expression. An empty
// input or "now" yields the clock's now.
func (c Clock) ParseTimestamp(input string) (time.Time, error) {
	now := c.now()
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "now") {
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t.In(now.Location()), nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}
	result, err := dateparser.Parse(cfg, input)
	if err != nil {
		return time.Time{}, errors.InvalidInput(errors.ErrInvalidTimestamp, "timestamp", input)
	}
	t := result.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), now.Location()), nil
}

// ParseDate parses a civil date and returns its midnight. Besides
// YYYY-MM-DD it accepts "today", "yesterday", period expressions such as
// "last week" (the first day of that period) and anything ParseTimestamp
// understands.
func (c Clock) ParseDate(input string) (time.Time, error) {
	now := c.now()
	input = strings.TrimSpace(input)
	switch strings.ToLower(input) {
	case "", "today", "now":
		return schedule.StartOfDay(now), nil
	case "yesterday":
		return schedule.StartOfDay(now).AddDate(0, 0, -1), nil
	case "tomorrow":
		return schedule.NextDay(now), nil
	}

	if d, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return d, nil
	}
	if match := periodRegex.FindStringSubmatch(input); match != nil {
		return c.periodStart(now, strings.ToLower(match[1]), strings.ToLower(match[2])), nil
	}

	t, err := c.ParseTimestamp(input)
	if err != nil {
		return time.Time{}, errors.InvalidInput(errors.ErrInvalidDate, "date", input)
	}
	return schedule.StartOfDay(t), nil
}

// periodStart returns the first midnight of the current or previous period.
func (c Clock) periodStart(now time.Time, modifier, period string) time.Time {
	previous := modifier == "last" || modifier == "previous"

	switch period {
	case "week":
		t := schedule.WeekStart(now, c.WeekStart)
		if previous {
			t = t.AddDate(0, 0, -7)
		}
		return t
	case "month":
		t, _ := schedule.MonthRange(now)
		if previous {
			t = t.AddDate(0, -1, 0)
		}
		return t
	case "year":
		t, _ := schedule.YearRange(now)
		if previous {
			t = t.AddDate(-1, 0, 0)
		}
		return t
	default:
		t := schedule.StartOfDay(now)
		if previous {
			t = t.AddDate(0, 0, -1)
		}
		return t
	}
}

// ParseMonth parses YYYY-MM, or a date expression, into the first of that
// month.
func (c Clock) ParseMonth(input string) (time.Time, error) {
	now := c.now()
	if m, err := time.ParseInLocation("2006-01", strings.TrimSpace(input), now.Location()); err == nil {
		return m, nil
	}
	d, err := c.ParseDate(input)
	if err != nil {
		return time.Time{}, err
	}
	start, _ := schedule.MonthRange(d)
	return start, nil
}

// ParseYear parses YYYY, or a date expression, into January 1st of that
// year.
func (c Clock) ParseYear(input string) (time.Time, error) {
	now := c.now()
	if y, err := time.ParseInLocation("2006", strings.TrimSpace(input), now.Location()); err == nil {
		return y, nil
	}
	d, err := c.ParseDate(input)
	if err != nil {
		return time.Time{}, err
	}
	start, _ := schedule.YearRange(d)
	return start, nil
}
