// Package tracker implements the live timer: the STOPPED / WORKING /
// ON_BREAK state machine over the interval ledger, the heartbeat and the
// stale-timer reset.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/model"
)

// State is the timer state. It is always derived from the ledger.
type State string

const (
	StateStopped State = "stopped"
	StateWorking State = "working"
	StateOnBreak State = "on_break"
)

// Ledger is the part of the interval store the tracker mutates. Each method
// runs as one read-modify-write transaction.
type Ledger interface {
	ListOpen() ([]*model.Interval, error)
	ReplaceOpen(at time.Time, next *model.Interval) ([]*model.Interval, error)
	CloseOpenIf(decide func(iv *model.Interval) (time.Time, bool)) (*model.Interval, error)
	TouchOpen(at time.Time) (*model.Interval, error)
}

// Thresholds configures the stale-timer reset. A zero value disables the
// reset for that interval type.
type Thresholds struct {
	Work  time.Duration
	Break time.Duration
}

func (t Thresholds) of(typ model.IntervalType) time.Duration {
	if typ == model.IntervalBreak {
		return t.Break
	}
	return t.Work
}

// Transition reports the outcome of a state change. When the requested
// state was already current, only Current is set.
type Transition struct {
	From    State             `json:"from"`
	To      State             `json:"to"`
	Closed  []*model.Interval `json:"closed,omitempty"`
	Started *model.Interval   `json:"started,omitempty"`
	Current *model.Interval   `json:"current,omitempty"`
}

// Tracker serializes timer transitions within the process; the ledger
// transaction guards against other writers.
type Tracker struct {
	mu         sync.Mutex
	ledger     Ledger
	thresholds Thresholds
	now        func() time.Time
}

// New creates a tracker. A nil clock means time.Now.
func New(ledger Ledger, thresholds Thresholds, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{ledger: ledger, thresholds: thresholds, now: now}
}

// SetThresholds replaces the stale-timer thresholds.
func (t *Tracker) SetThresholds(th Thresholds) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.thresholds = th
}

func stateOf(iv *model.Interval) State {
	switch {
	case iv == nil:
		return StateStopped
	case iv.Type == model.IntervalBreak:
		return StateOnBreak
	default:
		return StateWorking
	}
}

func latest(open []*model.Interval) *model.Interval {
	var last *model.Interval
	for _, iv := range open {
		if last == nil || !iv.StartedAt.Before(last.StartedAt) {
			last = iv
		}
	}
	return last
}

// State returns the current state and the open interval, if any.
func (t *Tracker) State(ctx context.Context) (State, *model.Interval, error) {
	if err := ctx.Err(); err != nil {
		return StateStopped, nil, err
	}
	open, err := t.ledger.ListOpen()
	if err != nil {
		return StateStopped, nil, err
	}
	iv := latest(open)
	return stateOf(iv), iv, nil
}

// StartWork closes whatever is running and opens a WORK interval at now.
func (t *Tracker) StartWork(ctx context.Context) (*Transition, error) {
	return t.StartWorkAt(ctx, t.now())
}

// StartWorkAt is StartWork at an explicit instant.
func (t *Tracker) StartWorkAt(ctx context.Context, at time.Time) (*Transition, error) {
	return t.transition(ctx, model.IntervalWork, at, "")
}

// StartBreak closes whatever is running and opens a BREAK interval at now.
func (t *Tracker) StartBreak(ctx context.Context) (*Transition, error) {
	return t.StartBreakAt(ctx, t.now())
}

// StartBreakAt is StartBreak at an explicit instant.
func (t *Tracker) StartBreakAt(ctx context.Context, at time.Time) (*Transition, error) {
	return t.transition(ctx, model.IntervalBreak, at, "")
}

// StartWithNote opens an interval of the given type with a description.
func (t *Tracker) StartWithNote(ctx context.Context, typ model.IntervalType, at time.Time, note string) (*Transition, error) {
	return t.transition(ctx, typ, at, note)
}

// Stop closes whatever is running and opens nothing.
func (t *Tracker) Stop(ctx context.Context) (*Transition, error) {
	return t.StopAt(ctx, t.now())
}

// StopAt is Stop at an explicit instant.
func (t *Tracker) StopAt(ctx context.Context, at time.Time) (*Transition, error) {
	return t.transition(ctx, "", at, "")
}

func (t *Tracker) transition(ctx context.Context, typ model.IntervalType, at time.Time, note string) (*Transition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// Starting the type that is already running keeps the interval whole.
	// A note asks for a new interval.
	if typ != "" && note == "" {
		open, err := t.ledger.ListOpen()
		if err != nil {
			return nil, errors.Wrap(err, "timer transition")
		}
		if cur := latest(open); len(open) == 1 && cur.Type == typ {
			state := stateOf(cur)
			logging.FromContext(ctx).Debug("timer unchanged", "state", state)
			return &Transition{From: state, To: state, Current: cur}, nil
		}
	}

	var next *model.Interval
	if typ != "" {
		next = model.NewInterval(typ, at, model.SourceManual, note)
	}

	closed, err := t.ledger.ReplaceOpen(at, next)
	if err != nil {
		return nil, errors.Wrap(err, "timer transition")
	}

	log := logging.FromContext(ctx)
	if len(closed) > 1 {
		log.Warn("state conflict resolved",
			logging.KeyError, errors.ErrStateConflict,
			logging.KeyCount, len(closed))
	}

	tr := &Transition{
		From:    stateOf(latest(closed)),
		To:      stateOf(next),
		Closed:  closed,
		Started: next,
	}
	log.Info("timer transition",
		"from", tr.From,
		"to", tr.To)
	return tr, nil
}

// Ping records a heartbeat on the open interval. It returns the interval, or
// nil when the timer is stopped.
func (t *Tracker) Ping(ctx context.Context) (*model.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.ledger.TouchOpen(t.now())
}

// CheckStopTimeReset closes the open interval at its last heartbeat when no
// heartbeat arrived within the threshold for its type. It reports whether an
// interval was closed and is safe to call repeatedly.
func (t *Tracker) CheckStopTimeReset(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	closed, err := t.ledger.CloseOpenIf(func(iv *model.Interval) (time.Time, bool) {
		limit := t.thresholds.of(iv.Type)
		if limit <= 0 {
			return time.Time{}, false
		}
		last := iv.LastPingAt
		if last.Before(iv.StartedAt) {
			last = iv.StartedAt
		}
		if now.Sub(last) <= limit {
			return time.Time{}, false
		}
		return last, true
	})
	if err != nil {
		return false, errors.Wrap(err, "stale timer reset")
	}
	if closed == nil {
		return false, nil
	}

	logging.FromContext(ctx).Info("stale timer closed",
		logging.KeyInterval, closed.ID(),
		logging.KeyType, closed.Type,
		"ended_at", closed.EndedAt)
	return true, nil
}
