package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/model"
)

// Timer is the live timer as seen by the refresh tick.
type Timer interface {
	CheckStopTimeReset(ctx context.Context) (bool, error)
	Ping(ctx context.Context) (*model.Interval, error)
}

// TimerChecker closes stale timers and records the heartbeat.
type TimerChecker struct {
	timer Timer
	// onReset runs after a stale interval was closed.
	onReset func()
}

// NewTimerChecker creates a new timer checker. onReset may be nil.
func NewTimerChecker(timer Timer, onReset func()) *TimerChecker {
	return &TimerChecker{timer: timer, onReset: onReset}
}

// Check runs the stale-timer reset, then pings whatever is still open. The
// order matters: a ping first would refresh a stale interval.
func (c *TimerChecker) Check(ctx context.Context) {
	log := logging.FromContext(ctx)

	reset, err := c.timer.CheckStopTimeReset(ctx)
	if err != nil {
		log.Error("stale timer check failed", logging.KeyError, err)
		return
	}
	if reset && c.onReset != nil {
		c.onReset()
	}

	iv, err := c.timer.Ping(ctx)
	if err != nil {
		log.Error("heartbeat failed", logging.KeyError, err)
		return
	}
	if iv != nil {
		log.Debug("heartbeat", logging.KeyInterval, iv.ID(), logging.KeyType, iv.Type)
	}
}

// Recomputer rebuilds the stored weekly balances.
type Recomputer interface {
	Recompute(ctx context.Context) (*balance.RecomputeResult, error)
}

// RecomputeJob runs the weekly balance recompute. Overlapping runs are
// skipped.
type RecomputeJob struct {
	recomputer Recomputer
	running    sync.Mutex
	lastRun    time.Time
	lastErr    error
	stateMu    sync.RWMutex
}

// NewRecomputeJob creates a new recompute job.
func NewRecomputeJob(r Recomputer) *RecomputeJob {
	return &RecomputeJob{recomputer: r}
}

// Run performs one recompute unless another is in progress.
func (j *RecomputeJob) Run(ctx context.Context) {
	if !j.running.TryLock() {
		logging.FromContext(ctx).Debug("recompute already running")
		return
	}
	defer j.running.Unlock()

	res, err := j.recomputer.Recompute(ctx)

	j.stateMu.Lock()
	j.lastRun = time.Now()
	j.lastErr = err
	j.stateMu.Unlock()

	if err != nil {
		logging.FromContext(ctx).Error("recompute job failed", logging.KeyError, err)
		return
	}
	logging.FromContext(ctx).Info("recompute job finished",
		logging.KeyCount, res.Weeks,
		"deleted", res.Deleted)
}

// LastRun returns when the job last finished and its error.
func (j *RecomputeJob) LastRun() (time.Time, error) {
	j.stateMu.RLock()
	defer j.stateMu.RUnlock()
	return j.lastRun, j.lastErr
}
