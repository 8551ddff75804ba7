package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// TIMESCRIBE_TRACKING_WORK_RESET_AFTER=30m.
const EnvPrefix = "TIMESCRIBE"

// Viper keys.
const (
	keyDatabasePath      = "database.path"
	keyWorkResetAfter    = "tracking.work_reset_after"
	keyBreakResetAfter   = "tracking.break_reset_after"
	keyFallbackHours     = "plan.fallback_hours"
	keyWeekStart         = "plan.week_start"
	keyTimezone          = "plan.timezone"
	keyHolidayRegion     = "plan.holiday_region"
	keyHolidays          = "plan.holidays"
	keyRefreshSpec       = "scheduler.refresh"
	keyRecomputeSpec     = "scheduler.recompute"
	keyServerAddr        = "server.addr"
	keyServerOrigins     = "server.allowed_origins"
	keyDaemonStartupWait = "daemon.startup_wait"
	keyDaemonKillTimeout = "daemon.kill_timeout"
	keyLogLevel          = "log.level"
	keyLogFile           = "log.file"
	keyLogMaxSizeMB      = "log.max_size_mb"
	keyLogMaxBackups     = "log.max_backups"
)

// newViper returns a viper instance with defaults and env bindings.
func newViper(path string) *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault(keyDatabasePath, d.Database.Path)
	v.SetDefault(keyWorkResetAfter, d.Tracking.WorkResetAfter.String())
	v.SetDefault(keyBreakResetAfter, d.Tracking.BreakResetAfter.String())
	v.SetDefault(keyFallbackHours, d.Plan.FallbackHours)
	v.SetDefault(keyWeekStart, d.Plan.WeekStart)
	v.SetDefault(keyTimezone, d.Plan.Timezone)
	v.SetDefault(keyHolidayRegion, d.Plan.HolidayRegion)
	v.SetDefault(keyHolidays, map[string][]string{})
	v.SetDefault(keyRefreshSpec, d.Scheduler.Refresh)
	v.SetDefault(keyRecomputeSpec, d.Scheduler.Recompute)
	v.SetDefault(keyServerAddr, d.Server.Addr)
	v.SetDefault(keyServerOrigins, d.Server.AllowedOrigins)
	v.SetDefault(keyDaemonStartupWait, d.Daemon.StartupWait.String())
	v.SetDefault(keyDaemonKillTimeout, d.Daemon.KillTimeout.String())
	v.SetDefault(keyLogLevel, d.Log.Level)
	v.SetDefault(keyLogFile, d.Log.File)
	v.SetDefault(keyLogMaxSizeMB, d.Log.MaxSizeMB)
	v.SetDefault(keyLogMaxBackups, d.Log.MaxBackups)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// TIMESCRIBE_DATABASE predates the nested layout.
	_ = v.BindEnv(keyDatabasePath, EnvPrefix+"_DATABASE", EnvPrefix+"_DATABASE_PATH")

	return v
}

// Load reads the settings file at path. A missing file yields the defaults;
// environment variables override both.
func Load(path string) (*Settings, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding config failed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set validates and writes one key to the settings file at path, creating
// it when missing.
func Set(path, key, value string) (*Settings, error) {
	if !isKnownKey(key) {
		return nil, unknownKeyError(key)
	}

	v, err := read(path)
	if err != nil {
		return nil, err
	}

	switch key {
	case keyServerOrigins:
		v.Set(key, splitList(value))
	case keyHolidays:
		return nil, fmt.Errorf("%s is a map, edit %s directly", key, path)
	default:
		v.Set(key, value)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding config failed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return nil, fmt.Errorf("writing config file failed: %w", err)
	}
	return s, nil
}

// Get returns the effective value of key: the file value, an environment
// override or the default.
func Get(path, key string) (any, error) {
	if !isKnownKey(key) {
		return nil, unknownKeyError(key)
	}
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// Values returns the effective value of every key.
func Values(path string) (map[string]any, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(Keys()))
	for _, key := range Keys() {
		values[key] = v.Get(key)
	}
	return values, nil
}

// read loads the settings file at path into a viper instance. A missing
// file is not an error.
func read(path string) (*viper.Viper, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config file failed: %w", err)
	}
	return v, nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown setting %q, expected one of: %s", key, strings.Join(Keys(), ", "))
}

// Keys returns the settable keys, sorted.
func Keys() []string {
	keys := []string{
		keyDatabasePath, keyWorkResetAfter, keyBreakResetAfter, keyFallbackHours,
		keyWeekStart, keyTimezone, keyHolidayRegion, keyHolidays, keyRefreshSpec,
		keyRecomputeSpec, keyServerAddr, keyServerOrigins, keyDaemonStartupWait,
		keyDaemonKillTimeout, keyLogLevel, keyLogFile, keyLogMaxSizeMB, keyLogMaxBackups,
	}
	sort.Strings(keys)
	return keys
}

func isKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}
