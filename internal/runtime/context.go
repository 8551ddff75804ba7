// Package runtime provides application runtime context for TimeScribe.
package runtime

import (
	"context"
	"time"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/parser"
	"github.com/kyukei-panda/timescribe/internal/storage"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// Context holds the application runtime context.
type Context struct {
	Settings   *config.Settings
	ConfigPath string
	DB         *storage.DB
	Formatter  *output.Formatter

	// Repositories
	Intervals    *storage.IntervalRepo
	Schedules    *storage.ScheduleRepo
	Absences     *storage.AbsenceRepo
	WeekBalances *storage.WeekBalanceRepo

	// Services
	Engine     *balance.Engine
	Tracker    *tracker.Tracker
	Reconciler *importer.Reconciler

	Location  *time.Location
	WeekStart time.Weekday
	Now       func() time.Time

	// Debug mode
	Debug bool
}

// Options configures the runtime context.
type Options struct {
	ConfigPath string
	// Settings skips loading ConfigPath when set.
	Settings  *config.Settings
	Format    output.Format
	ColorMode output.ColorMode
	Debug     bool
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		ConfigPath: config.DefaultPath(),
		Format:     output.FormatCLI,
		ColorMode:  output.ColorAuto,
	}
}

// New loads the settings, opens the database and wires the services.
func New(opts Options) (*Context, error) {
	settings := opts.Settings
	if settings == nil {
		var err error
		if settings, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := settings.WeekStartDay()
	if err != nil {
		return nil, err
	}
	fallback, err := settings.Fallback()
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	// Open database
	db, err := storage.Open(storage.Options{
		Path:     settings.Database.Path,
		InMemory: settings.InMemory(),
	})
	if err != nil {
		return nil, err
	}

	intervals := storage.NewIntervalRepo(db)
	schedules := storage.NewScheduleRepo(db)
	absences := storage.NewAbsenceRepo(db)

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode
	formatter.Location = loc

	return &Context{
		Settings:     settings,
		ConfigPath:   opts.ConfigPath,
		DB:           db,
		Formatter:    formatter,
		Intervals:    intervals,
		Schedules:    schedules,
		Absences:     absences,
		WeekBalances: storage.NewWeekBalanceRepo(db),
		Engine: balance.NewEngine(intervals, schedules, absences, balance.Options{
			Location:  loc,
			WeekStart: weekStart,
			Fallback:  fallback,
			Holidays:  settings.HolidayDates(),
			Now:       now,
		}),
		Tracker: tracker.New(intervals, tracker.Thresholds{
			Work:  settings.Tracking.WorkResetAfter,
			Break: settings.Tracking.BreakResetAfter,
		}, now),
		Reconciler: importer.NewReconciler(intervals, loc, now),
		Location:   loc,
		WeekStart:  weekStart,
		Now:        now,
		Debug:      opts.Debug,
	}, nil
}

// Close closes the runtime context.
func (c *Context) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Clock returns a parser anchored at the current time.
func (c *Context) Clock() parser.Clock {
	return parser.Clock{Now: c.Now(), Location: c.Location, WeekStart: c.WeekStart}
}

// Recompute rebuilds the weekly balances.
func (c *Context) Recompute(ctx context.Context) (*balance.RecomputeResult, error) {
	ctx = logging.WithOperation(ctx, "recompute")
	start := time.Now()
	res, err := c.Engine.Recompute(ctx, c.WeekBalances)
	if err != nil {
		logging.FromContext(ctx).Error("recompute failed", logging.KeyError, err)
		return nil, err
	}
	logging.FromContext(ctx).Debug("weekly balances recomputed",
		logging.KeyCount, res.Weeks,
		logging.KeyDuration, time.Since(start))
	return res, nil
}

// Status returns the timer state with today's and this week's figures.
func (c *Context) Status(ctx context.Context) (*output.Status, error) {
	state, open, err := c.Tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	now := c.Engine.Now()
	today, err := c.Engine.Day(ctx, now)
	if err != nil {
		return nil, err
	}
	week, err := c.Engine.Week(ctx, now)
	if err != nil {
		return nil, err
	}
	week.Days = nil
	return &output.Status{State: state, Interval: open, Now: now, Today: today, Week: week}, nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.Format == output.FormatJSON
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...interface{}) {
	if c.Debug {
		c.Formatter.Printf("[DEBUG] "+format+"\n", args...)
	}
}
