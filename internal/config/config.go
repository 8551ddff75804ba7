// Package config provides the TimeScribe settings store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/shopspring/decimal"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

// MemoryDatabase selects an in-memory database instead of a path.
const MemoryDatabase = ":memory:"

// HolidaysEverywhere is the holiday list applied regardless of region.
const HolidaysEverywhere = "all"

// Settings holds every user configurable value.
type Settings struct {
	Database  DatabaseSettings  `mapstructure:"database" json:"database"`
	Tracking  TrackingSettings  `mapstructure:"tracking" json:"tracking"`
	Plan      PlanSettings      `mapstructure:"plan" json:"plan"`
	Scheduler SchedulerSettings `mapstructure:"scheduler" json:"scheduler"`
	Server    ServerSettings    `mapstructure:"server" json:"server"`
	Daemon    DaemonSettings    `mapstructure:"daemon" json:"daemon"`
	Log       LogSettings       `mapstructure:"log" json:"log"`
}

// DatabaseSettings locates the badger directory.
type DatabaseSettings struct {
	// Path is the database directory, or ":memory:".
	// Default: $XDG_DATA_HOME/timescribe/db
	Path string `mapstructure:"path" json:"path"`
}

// TrackingSettings configures the stale-timer reset.
type TrackingSettings struct {
	// WorkResetAfter closes a WORK interval that has not been pinged for
	// this long. Zero disables.
	// Default: 15m
	WorkResetAfter time.Duration `mapstructure:"work_reset_after" json:"work_reset_after"`

	// BreakResetAfter is the same for BREAK intervals.
	// Default: 1h
	BreakResetAfter time.Duration `mapstructure:"break_reset_after" json:"break_reset_after"`
}

// PlanSettings configures planned time.
type PlanSettings struct {
	// FallbackHours is planned on each Monday to Friday no schedule covers.
	// Default: "8"
	FallbackHours string `mapstructure:"fallback_hours" json:"fallback_hours"`

	// WeekStart is the first day of a week, e.g. "monday".
	// Default: monday
	WeekStart string `mapstructure:"week_start" json:"week_start"`

	// Timezone is the IANA zone days are cut in. Empty means local time.
	Timezone string `mapstructure:"timezone" json:"timezone,omitempty"`

	// HolidayRegion selects the region list of Holidays.
	HolidayRegion string `mapstructure:"holiday_region" json:"holiday_region,omitempty"`

	// Holidays maps a region to its dates (YYYY-MM-DD). The "all" list
	// applies in every region.
	Holidays map[string][]string `mapstructure:"holidays" json:"holidays,omitempty"`
}

// SchedulerSettings holds the cron specs of the background jobs. Specs
// carry a seconds field.
type SchedulerSettings struct {
	// Refresh runs the stale-timer check and heartbeat.
	// Default: every 15 seconds
	Refresh string `mapstructure:"refresh" json:"refresh"`

	// Recompute rebuilds the weekly balances.
	// Default: every 5 minutes
	Recompute string `mapstructure:"recompute" json:"recompute"`
}

// ServerSettings configures the local HTTP API.
type ServerSettings struct {
	// Addr is the listen address.
	// Default: 127.0.0.1:7878
	Addr string `mapstructure:"addr" json:"addr"`

	// AllowedOrigins are the CORS origins of the web UI.
	// Default: http://localhost:*, http://127.0.0.1:*
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
}

// DaemonSettings configures the background process.
type DaemonSettings struct {
	// StartupWait is the time to wait for the daemon to start before checking status.
	// Default: 500ms
	StartupWait time.Duration `mapstructure:"startup_wait" json:"startup_wait"`

	// KillTimeout is the timeout for graceful shutdown before force kill.
	// Default: 5s
	KillTimeout time.Duration `mapstructure:"kill_timeout" json:"kill_timeout"`
}

// LogSettings configures the daemon log file.
type LogSettings struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `mapstructure:"level" json:"level"`

	// File is the rotating log file of the daemon.
	// Default: $XDG_STATE_HOME/timescribe/daemon.log
	File string `mapstructure:"file" json:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	// Default: 10
	MaxSizeMB int `mapstructure:"max_size_mb" json:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 3
	MaxBackups int `mapstructure:"max_backups" json:"max_backups"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Path: storage.DefaultPath(),
		},
		Tracking: TrackingSettings{
			WorkResetAfter:  15 * time.Minute,
			BreakResetAfter: time.Hour,
		},
		Plan: PlanSettings{
			FallbackHours: "8",
			WeekStart:     "monday",
		},
		Scheduler: SchedulerSettings{
			Refresh:   "*/15 * * * * *",
			Recompute: "0 */5 * * * *",
		},
		Server: ServerSettings{
			Addr:           "127.0.0.1:7878",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Daemon: DaemonSettings{
			StartupWait: 500 * time.Millisecond,
			KillTimeout: 5 * time.Second,
		},
		Log: LogSettings{
			Level:      "info",
			File:       filepath.Join(xdg.StateHome, storage.AppName, "daemon.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultPath returns the settings file path following the XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, storage.AppName, "config.yaml")
}

// InMemory reports whether the database lives in memory only.
func (s *Settings) InMemory() bool {
	return s.Database.Path == MemoryDatabase
}

// Validate checks every value that is parsed lazily.
func (s *Settings) Validate() error {
	if _, err := s.Fallback(); err != nil {
		return err
	}
	if _, err := s.WeekStartDay(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.Tracking.WorkResetAfter < 0 || s.Tracking.BreakResetAfter < 0 {
		return errors.InvalidInput(errors.ErrInvalidDuration, "tracking", "negative reset threshold")
	}
	for region, dates := range s.Plan.Holidays {
		for _, d := range dates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return errors.InvalidInput(errors.ErrInvalidDate, "plan.holidays."+region, d)
			}
		}
	}
	return nil
}

// Fallback returns the fallback planned hours.
func (s *Settings) Fallback() (decimal.Decimal, error) {
	h, err := decimal.NewFromString(strings.TrimSpace(s.Plan.FallbackHours))
	if err != nil || h.IsNegative() || h.GreaterThan(decimal.NewFromInt(24)) {
		return decimal.Zero, errors.InvalidInput(errors.ErrInvalidHours, "plan.fallback_hours", s.Plan.FallbackHours)
	}
	return h, nil
}

// WeekStartDay returns the configured first day of the week.
func (s *Settings) WeekStartDay() (time.Weekday, error) {
	return ParseWeekday(s.Plan.WeekStart)
}

// Location returns the configured time zone.
func (s *Settings) Location() (*time.Location, error) {
	if s.Plan.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Plan.Timezone)
	if err != nil {
		return nil, errors.NewUserErrorWithField("plan.timezone", s.Plan.Timezone,
			fmt.Sprintf("unknown time zone: %v", err), "Use an IANA zone name such as 'Europe/Berlin'.")
	}
	return loc, nil
}

// HolidayDates returns the dates that apply in the selected region.
func (s *Settings) HolidayDates() []string {
	dates := append([]string(nil), s.Plan.Holidays[HolidaysEverywhere]...)
	if region := strings.ToLower(s.Plan.HolidayRegion); region != "" && region != HolidaysEverywhere {
		dates = append(dates, s.Plan.Holidays[region]...)
	}
	return dates
}

// ParseWeekday parses a weekday name or its three letter abbreviation.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Monday, errors.NewUserErrorWithField("plan.week_start", s,
		"unknown weekday", "Use a weekday name such as 'monday' or 'sun'.")
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
