package runtime

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/storage"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// Timer actions accepted by Transition.
const (
	ActionWork  = "work"
	ActionBreak = "break"
	ActionStop  = "stop"
)

// Transition applies a timer action at the given instant. A zero at means
// now. A recompute follows whenever an interval was closed.
func (c *Context) Transition(ctx context.Context, action string, at time.Time, note string) (*tracker.Transition, error) {
	if at.IsZero() {
		at = c.Now()
	}

	var (
		tr  *tracker.Transition
		err error
	)
	switch action {
	case ActionWork:
		tr, err = c.Tracker.StartWithNote(ctx, model.IntervalWork, at, note)
	case ActionBreak:
		tr, err = c.Tracker.StartWithNote(ctx, model.IntervalBreak, at, note)
	case ActionStop:
		tr, err = c.Tracker.StopAt(ctx, at)
	default:
		return nil, tserrors.InvalidInput(tserrors.ErrInvalidType, "action", action)
	}
	if err != nil {
		return nil, WrapDiskFullError(err, action, c.DB.Path())
	}

	if len(tr.Closed) > 0 {
		if _, err := c.Recompute(ctx); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

// Import reconciles raw against the ledger and, unless dryRun is set,
// recomputes the weekly balances.
func (c *Context) Import(ctx context.Context, source string, raw []byte, dryRun bool) (*importer.Result, error) {
	src, err := importer.NewSource(source, c.Location)
	if err != nil {
		return nil, err
	}
	res, err := c.Reconciler.Import(ctx, src, raw, importer.Options{DryRun: dryRun})
	if err != nil {
		return nil, WrapDiskFullError(err, "import", c.DB.Path())
	}
	if !dryRun && res.Persisted > 0 {
		if _, err := c.Recompute(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// AddSchedule stores a schedule version valid from the given date. Hours
// are Monday first.
func (c *Context) AddSchedule(ctx context.Context, validFrom time.Time, mondayFirst [7]decimal.Decimal) (*model.WorkSchedule, error) {
	s := model.NewWorkSchedule(validFrom, mondayFirst)
	if err := c.Schedules.Create(s); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("schedule added",
		"id", s.ID(),
		"valid_from", s.ValidFrom.Format(model.DateLayout),
		"weekly_hours", s.WeeklyHours().String())
	return s, c.recomputeAfterChange(ctx)
}

// DeleteSchedule removes a schedule version by ID.
func (c *Context) DeleteSchedule(ctx context.Context, id string) error {
	if err := c.Schedules.Delete(id); err != nil {
		if storage.IsErrKeyNotFound(err) {
			return tserrors.InvalidInput(tserrors.ErrScheduleNotFound, "id", id)
		}
		return err
	}
	return c.recomputeAfterChange(ctx)
}

// AddAbsence stores an absence. The duration is a fraction of a day.
func (c *Context) AddAbsence(ctx context.Context, typ model.AbsenceType, date time.Time, duration decimal.Decimal, note string) (*model.Absence, error) {
	if !model.ValidDuration(duration) {
		return nil, tserrors.InvalidInput(tserrors.ErrInvalidDuration, "duration", duration.String())
	}
	a := model.NewAbsence(typ, date, duration, note)
	if err := c.Absences.Create(a); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("absence added",
		"id", a.ID(),
		logging.KeyType, a.Type,
		"date", a.DateString())
	return a, c.recomputeAfterChange(ctx)
}

// DeleteAbsence removes an absence by ID.
func (c *Context) DeleteAbsence(ctx context.Context, id string) error {
	if err := c.Absences.Delete(id); err != nil {
		if storage.IsErrKeyNotFound(err) {
			return tserrors.InvalidInput(tserrors.ErrAbsenceNotFound, "id", id)
		}
		return err
	}
	return c.recomputeAfterChange(ctx)
}

// AddInterval records a completed interval by hand. It must end after it
// starts, not in the future, and must not overlap a recorded interval.
func (c *Context) AddInterval(ctx context.Context, typ model.IntervalType, start, end time.Time, note string) (*model.Interval, error) {
	now := c.Now()
	if !end.After(start) {
		return nil, tserrors.InvalidInput(tserrors.ErrEndBeforeStart, "end", end.Format(time.RFC3339))
	}
	if end.After(now) {
		return nil, tserrors.NewUserErrorWithField("end", end.Format(time.RFC3339),
			"interval ends in the future", "Use 'timescribe start' to record a running interval.")
	}

	overlapping, err := c.Intervals.ListOverlapping(start, end, now)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, tserrors.NewUserError("interval overlaps recorded interval "+overlapping[0].ID(),
			"Delete the recorded interval first or choose another range.")
	}

	iv := model.NewInterval(typ, start, model.SourceManual, note)
	iv.Close(end)
	if err := c.Intervals.Create(iv); err != nil {
		return nil, WrapDiskFullError(err, "add", c.DB.Path())
	}
	logging.FromContext(ctx).Info("interval added",
		logging.KeyInterval, iv.ID(),
		logging.KeyType, iv.Type)
	return iv, c.recomputeAfterChange(ctx)
}

// DeleteInterval removes a recorded interval by ID.
func (c *Context) DeleteInterval(ctx context.Context, id string) error {
	if err := c.Intervals.Delete(id); err != nil {
		if storage.IsErrKeyNotFound(err) {
			return tserrors.InvalidInput(tserrors.ErrIntervalNotFound, "id", id)
		}
		return err
	}
	return c.recomputeAfterChange(ctx)
}

// Reset deletes every interval and week balance. Schedules and absences
// are kept.
func (c *Context) Reset(ctx context.Context) (int, error) {
	n, err := c.Intervals.DeleteAll()
	if err != nil {
		return 0, err
	}
	if _, err := c.WeekBalances.DeleteAll(); err != nil {
		return n, err
	}
	logging.FromContext(ctx).Warn("ledger reset", logging.KeyCount, n)
	return n, nil
}

func (c *Context) recomputeAfterChange(ctx context.Context) error {
	_, err := c.Recompute(ctx)
	return err
}
