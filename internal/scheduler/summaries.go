package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// DaySummarizer computes the aggregates of one civil day.
type DaySummarizer interface {
	Day(ctx context.Context, date time.Time) (*balance.Summary, error)
	Now() time.Time
	Location() *time.Location
}

// DayCloser logs the summary of the previous day once the local date
// changes. The first check only records the current day.
type DayCloser struct {
	engine DaySummarizer
	mu     sync.Mutex
	day    time.Time
	// Closed is called with every finished day summary. Optional.
	Closed func(*balance.Summary)
}

// NewDayCloser creates a new day closer.
func NewDayCloser(engine DaySummarizer) *DayCloser {
	return &DayCloser{engine: engine}
}

// Check summarizes every day that finished since the previous check.
func (c *DayCloser) Check(ctx context.Context) {
	now := c.engine.Now()
	today := schedule.StartOfDay(now.In(c.engine.Location()))

	c.mu.Lock()
	last := c.day
	c.day = today
	c.mu.Unlock()

	if last.IsZero() || !today.After(last) {
		return
	}

	// A long sleep may skip several days.
	for day := last; day.Before(today); day = schedule.NextDay(day) {
		s, err := c.engine.Day(ctx, day)
		if err != nil {
			logging.FromContext(ctx).Error("day summary failed", logging.KeyError, err)
			return
		}
		logging.FromContext(ctx).Info("day closed",
			"date", schedule.DateKey(day),
			"work_seconds", s.WorkSeconds,
			"break_seconds", s.BreakSeconds,
			"plan_seconds", s.PlanSeconds,
			"balance_seconds", s.BalanceSeconds)
		if c.Closed != nil {
			c.Closed(s)
		}
	}
}
