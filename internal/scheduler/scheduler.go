// Package scheduler provides cron-based task scheduling for the daemon.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kyukei-panda/timescribe/internal/logging"
)

// Specs holds the cron expressions of the daemon jobs. Both use the
// six-field form with seconds.
type Specs struct {
	Refresh   string
	Recompute string
}

// DefaultSpecs returns the default job schedule.
func DefaultSpecs() Specs {
	return Specs{
		Refresh:   "*/15 * * * * *",
		Recompute: "0 */5 * * * *",
	}
}

// sleepGap is the refresh gap after which the host is assumed to have slept.
const sleepGap = 10 * time.Minute

// Scheduler manages scheduled tasks using cron.
type Scheduler struct {
	cron       *cron.Cron
	specs      Specs
	ctx        context.Context
	debug      bool
	lastCheck  time.Time
	mu         sync.Mutex
	timer      *TimerChecker
	recompute  *RecomputeJob
	dayCloser  *DayCloser
	recomputes chan struct{}
	done       chan struct{}
}

// NewScheduler creates a new scheduler. loc is the zone cron expressions are
// evaluated in; nil means time.Local.
func NewScheduler(specs Specs, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		specs:      specs,
		ctx:        context.Background(),
		recomputes: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// SetDebug enables debug output.
func (s *Scheduler) SetDebug(debug bool) {
	s.debug = debug
}

// SetTimerChecker sets the heartbeat and stale-timer check.
func (s *Scheduler) SetTimerChecker(checker *TimerChecker) {
	s.timer = checker
}

// SetRecomputeJob sets the weekly balance recompute job.
func (s *Scheduler) SetRecomputeJob(job *RecomputeJob) {
	s.recompute = job
}

// SetDayCloser sets the day rollover summary.
func (s *Scheduler) SetDayCloser(closer *DayCloser) {
	s.dayCloser = closer
}

// Start adds the configured jobs, runs one recompute and starts the cron
// scheduler. ctx is handed to every job run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.lastCheck = time.Now()

	if _, err := s.cron.AddFunc(s.specs.Refresh, s.runRefresh); err != nil {
		return fmt.Errorf("failed to add refresh job %q: %w", s.specs.Refresh, err)
	}
	if _, err := s.cron.AddFunc(s.specs.Recompute, s.runRecompute); err != nil {
		return fmt.Errorf("failed to add recompute job %q: %w", s.specs.Recompute, err)
	}

	// Boot recompute so balances reflect edits made while the daemon was down.
	s.runRecompute()

	go s.drainRecomputes()
	s.cron.Start()

	logging.FromContext(ctx).Info("scheduler started",
		"refresh", s.specs.Refresh,
		"recompute", s.specs.Recompute)
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	logging.FromContext(s.ctx).Info("scheduler stopped")
}

// TriggerRecompute requests a recompute outside the cron schedule. Requests
// arriving while one is pending are coalesced.
func (s *Scheduler) TriggerRecompute() {
	select {
	case s.recomputes <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drainRecomputes() {
	for {
		select {
		case <-s.done:
			return
		case <-s.recomputes:
			s.runRecompute()
		}
	}
}

// runRefresh runs the stale-timer reset, the heartbeat and the day
// rollover check.
func (s *Scheduler) runRefresh() {
	s.mu.Lock()
	elapsed := time.Since(s.lastCheck)
	s.lastCheck = time.Now()
	s.mu.Unlock()

	ctx := logging.WithOperation(s.ctx, "refresh")
	log := logging.FromContext(ctx)
	if elapsed > sleepGap {
		// The reset must see the gap before the heartbeat hides it.
		log.Info("resuming after sleep", "gap", elapsed.Round(time.Second))
	}
	if s.debug {
		log.Debug("running refresh", "elapsed", elapsed.Round(time.Millisecond))
	}

	if s.timer != nil {
		s.timer.Check(ctx)
	}
	if s.dayCloser != nil {
		s.dayCloser.Check(ctx)
	}
}

func (s *Scheduler) runRecompute() {
	if s.recompute == nil {
		return
	}
	s.recompute.Run(logging.WithOperation(s.ctx, "recompute"))
}

// NextRun returns the next scheduled run time for any job.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}

	next := entries[0].Next
	for _, e := range entries[1:] {
		if e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// ValidateSpec reports whether spec is a valid six-field cron expression.
func ValidateSpec(spec string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(spec)
	return err
}
