package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// =============================================================================
// Interval Tests
// =============================================================================

func TestNewInterval(t *testing.T) {
	iv := NewInterval(IntervalWork, base, "", "standup")

	assert.Equal(t, IntervalWork, iv.Type)
	assert.Equal(t, base, iv.StartedAt)
	assert.Equal(t, base, iv.LastPingAt)
	assert.Equal(t, SourceManual, iv.Source)
	assert.True(t, iv.IsOpen())
}

func TestIntervalKey(t *testing.T) {
	iv := &Interval{}
	iv.SetKey(GenerateIntervalKey("abc123"))
	assert.Equal(t, "interval:abc123", iv.GetKey())
	assert.Equal(t, "abc123", iv.ID())
}

func TestIntervalEnd(t *testing.T) {
	now := base.Add(2 * time.Hour)

	t.Run("open_ends_now", func(t *testing.T) {
		iv := NewInterval(IntervalWork, base, "", "")
		assert.Equal(t, now, iv.End(now))
	})

	t.Run("open_started_in_future", func(t *testing.T) {
		iv := NewInterval(IntervalWork, now.Add(time.Hour), "", "")
		assert.Equal(t, iv.StartedAt, iv.End(now))
		assert.Zero(t, iv.Duration(now))
	})

	t.Run("closed", func(t *testing.T) {
		iv := NewInterval(IntervalWork, base, "", "")
		iv.Close(base.Add(30 * time.Minute))
		assert.False(t, iv.IsOpen())
		assert.Equal(t, base.Add(30*time.Minute), iv.End(now))
	})
}

func TestIntervalClipped(t *testing.T) {
	iv := NewInterval(IntervalWork, base, "", "")
	iv.Close(base.Add(2 * time.Hour))
	now := base.Add(10 * time.Hour)

	tests := []struct {
		name       string
		start, end time.Time
		want       time.Duration
	}{
		{"fully_inside_range", base.Add(-time.Hour), base.Add(3 * time.Hour), 2 * time.Hour},
		{"clipped_start", base.Add(30 * time.Minute), base.Add(3 * time.Hour), 90 * time.Minute},
		{"clipped_end", base.Add(-time.Hour), base.Add(time.Hour), time.Hour},
		{"range_inside_interval", base.Add(15 * time.Minute), base.Add(45 * time.Minute), 30 * time.Minute},
		{"disjoint", base.Add(5 * time.Hour), base.Add(6 * time.Hour), 0},
		{"touching_end", base.Add(2 * time.Hour), base.Add(3 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, iv.Clipped(tt.start, tt.end, now))
			assert.Equal(t, tt.want > 0, iv.Overlaps(tt.start, tt.end, now))
		})
	}
}

func TestIntervalJSONOpen(t *testing.T) {
	iv := NewInterval(IntervalBreak, base, "", "")
	data, err := json.Marshal(iv)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ended_at")

	var decoded Interval
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsOpen())
	assert.Equal(t, IntervalBreak, decoded.Type)
}

func TestParseIntervalType(t *testing.T) {
	typ, ok := ParseIntervalType(" Work ")
	assert.True(t, ok)
	assert.Equal(t, IntervalWork, typ)

	_, ok = ParseIntervalType("lunch")
	assert.False(t, ok)
}

// =============================================================================
// WorkSchedule Tests
// =============================================================================

func TestNewWorkScheduleMondayFirst(t *testing.T) {
	eight := decimal.NewFromInt(8)
	s := NewWorkSchedule(base, [7]decimal.Decimal{eight, eight, eight, eight, decimal.NewFromInt(6), decimal.Zero, decimal.Zero})

	assert.True(t, s.HoursOn(time.Monday).Equal(eight))
	assert.True(t, s.HoursOn(time.Friday).Equal(decimal.NewFromInt(6)))
	assert.True(t, s.HoursOn(time.Sunday).IsZero())
	assert.True(t, s.WeeklyHours().Equal(decimal.NewFromInt(38)))
}

func TestScheduleKey(t *testing.T) {
	s := &WorkSchedule{}
	s.SetKey(GenerateScheduleKey("x1"))
	assert.Equal(t, "schedule:x1", s.GetKey())
	assert.Equal(t, "x1", s.ID())
}

// =============================================================================
// Absence Tests
// =============================================================================

func TestValidDuration(t *testing.T) {
	assert.True(t, ValidDuration(decimal.NewFromInt(1)))
	assert.True(t, ValidDuration(decimal.RequireFromString("0.5")))
	assert.False(t, ValidDuration(decimal.Zero))
	assert.False(t, ValidDuration(decimal.RequireFromString("1.25")))
	assert.False(t, ValidDuration(decimal.NewFromInt(-1)))
}

func TestNewAbsence(t *testing.T) {
	a := NewAbsence(AbsenceSick, base, decimal.RequireFromString("0.5"), "dentist")
	a.SetKey(GenerateAbsenceKey("a1"))

	assert.Equal(t, "absence:a1", a.GetKey())
	assert.Equal(t, "a1", a.ID())
	assert.Equal(t, "2024-01-01", a.DateString())

	typ, ok := ParseAbsenceType("VACATION")
	assert.True(t, ok)
	assert.Equal(t, AbsenceVacation, typ)
}

// =============================================================================
// WeekBalance Tests
// =============================================================================

func TestNewWeekBalance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	wb := NewWeekBalance(start, end, 30*3600, 40*3600)
	assert.Equal(t, "weekbalance:2024-01-01:2024-01-07", wb.Key)
	assert.Equal(t, int64(-10*3600), wb.Balance)
}
