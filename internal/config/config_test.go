package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyukei-panda/timescribe/internal/errors"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, 15*time.Minute, s.Tracking.WorkResetAfter)
	assert.Equal(t, time.Hour, s.Tracking.BreakResetAfter)
	assert.Equal(t, "*/15 * * * * *", s.Scheduler.Refresh)
	assert.Equal(t, "0 */5 * * * *", s.Scheduler.Recompute)
	assert.Equal(t, 500*time.Millisecond, s.Daemon.StartupWait)
	assert.Equal(t, 5*time.Second, s.Daemon.KillTimeout)
	require.NoError(t, s.Validate())

	fallback, err := s.Fallback()
	require.NoError(t, err)
	assert.True(t, fallback.Equal(decimal.NewFromInt(8)))

	day, err := s.WeekStartDay()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Plan.FallbackHours, s.Plan.FallbackHours)
	assert.Equal(t, Default().Server.Addr, s.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tracking:
  work_reset_after: 30m
  break_reset_after: 0s
plan:
  fallback_hours: "7.7"
  week_start: sunday
  timezone: Europe/Berlin
  holiday_region: de-by
  holidays:
    all: ["2024-12-25"]
    de-by: ["2024-01-06"]
    de-be: ["2024-03-08"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, s.Tracking.WorkResetAfter)
	assert.Equal(t, time.Duration(0), s.Tracking.BreakResetAfter)

	fallback, err := s.Fallback()
	require.NoError(t, err)
	assert.Equal(t, "7.7", fallback.String())

	day, err := s.WeekStartDay()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	assert.ElementsMatch(t, []string{"2024-12-25", "2024-01-06"}, s.HolidayDates())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TIMESCRIBE_DATABASE", MemoryDatabase)
	t.Setenv("TIMESCRIBE_PLAN_FALLBACK_HOURS", "6")

	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.True(t, s.InMemory())
	assert.Equal(t, "6", s.Plan.FallbackHours)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"fallback not a number", "plan:\n  fallback_hours: lots\n"},
		{"fallback above a day", "plan:\n  fallback_hours: \"25\"\n"},
		{"unknown weekday", "plan:\n  week_start: someday\n"},
		{"unknown zone", "plan:\n  timezone: Mars/Olympus\n"},
		{"bad holiday", "plan:\n  holidays:\n    all: [\"25.12.2024\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.IsUserError(err))
		})
	}
}

func TestSetWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	s, err := Set(path, "tracking.work_reset_after", "45m")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, s.Tracking.WorkResetAfter)

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, loaded.Tracking.WorkResetAfter)

	s, err = Set(path, "server.allowed_origins", "http://a.test, http://b.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, s.Server.AllowedOrigins)
}

func TestSetRejectsUnknownKeyAndBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := Set(path, "nope", "1")
	assert.Error(t, err)

	_, err = Set(path, "plan.week_start", "blursday")
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid value must not be written")
}

func TestGetAndValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	v, err := Get(path, "plan.week_start")
	require.NoError(t, err)
	assert.Equal(t, "monday", v)

	_, err = Set(path, "plan.week_start", "sunday")
	require.NoError(t, err)
	v, err = Get(path, "plan.week_start")
	require.NoError(t, err)
	assert.Equal(t, "sunday", v)

	_, err = Get(path, "nope")
	assert.Error(t, err)

	values, err := Values(path)
	require.NoError(t, err)
	assert.Len(t, values, len(Keys()))
	assert.Equal(t, "sunday", values["plan.week_start"])
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"monday": time.Monday,
		"Sun":    time.Sunday,
		" sat ":  time.Saturday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
