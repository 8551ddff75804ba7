package model

import (
	"fmt"
	"time"
)

// WeekBalance caches the signed balance of one week. The key is derived from
// the week boundaries so there is exactly one row per week.
type WeekBalance struct {
	Key         string    `json:"key"`
	StartWeekAt time.Time `json:"start_week_at"`
	EndWeekAt   time.Time `json:"end_week_at"`
	Balance     int64     `json:"balance"`
	WorkSeconds int64     `json:"work_seconds"`
	PlanSeconds int64     `json:"plan_seconds"`
}

// SetKey sets the database key for this week balance.
func (w *WeekBalance) SetKey(key string) {
	w.Key = key
}

// GetKey returns the database key for this week balance.
func (w *WeekBalance) GetKey() string {
	return w.Key
}

// GenerateWeekBalanceKey generates the key for the given inclusive week boundaries.
func GenerateWeekBalanceKey(start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", PrefixWeekBalance, start.Format(DateLayout), end.Format(DateLayout))
}

// NewWeekBalance creates a week balance row with its key set.
func NewWeekBalance(start, end time.Time, work, plan int64) *WeekBalance {
	return &WeekBalance{
		Key:         GenerateWeekBalanceKey(start, end),
		StartWeekAt: start,
		EndWeekAt:   end,
		Balance:     work - plan,
		WorkSeconds: work,
		PlanSeconds: plan,
	}
}
