package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/scheduler"
)

// Metrics counts what the background jobs did since the daemon started.
type Metrics struct {
	refreshTicks      atomic.Int64
	staleResets       atomic.Int64
	pingErrors        atomic.Int64
	recomputes        atomic.Int64
	recomputeFailures atomic.Int64
	daysClosed        atomic.Int64

	mu          sync.RWMutex
	lastTick    time.Time
	lastError   string
	lastErrorAt time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	RefreshTicks      int64      `json:"refresh_ticks"`
	StaleResets       int64      `json:"stale_resets"`
	PingErrors        int64      `json:"ping_errors"`
	Recomputes        int64      `json:"recomputes"`
	RecomputeFailures int64      `json:"recompute_failures"`
	DaysClosed        int64      `json:"days_closed"`
	LastTick          *time.Time `json:"last_tick,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	LastErrorAt       *time.Time `json:"last_error_at,omitempty"`
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		RefreshTicks:      m.refreshTicks.Load(),
		StaleResets:       m.staleResets.Load(),
		PingErrors:        m.pingErrors.Load(),
		Recomputes:        m.recomputes.Load(),
		RecomputeFailures: m.recomputeFailures.Load(),
		DaysClosed:        m.daysClosed.Load(),
		LastError:         m.lastError,
	}
	if !m.lastTick.IsZero() {
		t := m.lastTick
		snap.LastTick = &t
	}
	if !m.lastErrorAt.IsZero() {
		t := m.lastErrorAt
		snap.LastErrorAt = &t
	}
	return snap
}

// Counters returns the counters keyed by their JSON names.
func (m *Metrics) Counters() map[string]int64 {
	s := m.Snapshot()
	return map[string]int64{
		"refresh_ticks":      s.RefreshTicks,
		"stale_resets":       s.StaleResets,
		"ping_errors":        s.PingErrors,
		"recomputes":         s.Recomputes,
		"recompute_failures": s.RecomputeFailures,
		"days_closed":        s.DaysClosed,
	}
}

// RecordTick records one refresh tick.
func (m *Metrics) RecordTick(at time.Time) {
	m.refreshTicks.Add(1)
	m.mu.Lock()
	m.lastTick = at
	m.mu.Unlock()
}

// RecordReset records a stale timer being closed.
func (m *Metrics) RecordReset() {
	m.staleResets.Add(1)
}

// RecordRecompute records the outcome of a recompute run.
func (m *Metrics) RecordRecompute(err error) {
	if err != nil {
		m.recomputeFailures.Add(1)
		m.recordError(err)
		return
	}
	m.recomputes.Add(1)
}

// RecordDayClosed records a finished day summary.
func (m *Metrics) RecordDayClosed() {
	m.daysClosed.Add(1)
}

func (m *Metrics) recordPingError(err error) {
	m.pingErrors.Add(1)
	m.recordError(err)
}

func (m *Metrics) recordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err.Error()
	m.lastErrorAt = time.Now()
}

// countingTimer counts the refresh ticks of the timer it wraps.
type countingTimer struct {
	scheduler.Timer
	metrics *Metrics
	now     func() time.Time
}

func (t countingTimer) CheckStopTimeReset(ctx context.Context) (bool, error) {
	t.metrics.RecordTick(t.now())
	return t.Timer.CheckStopTimeReset(ctx)
}

func (t countingTimer) Ping(ctx context.Context) (*model.Interval, error) {
	iv, err := t.Timer.Ping(ctx)
	if err != nil {
		t.metrics.recordPingError(err)
	}
	return iv, err
}

// countingRecomputer records the outcome of every recompute.
type countingRecomputer struct {
	scheduler.Recomputer
	metrics *Metrics
}

func (r countingRecomputer) Recompute(ctx context.Context) (*balance.RecomputeResult, error) {
	res, err := r.Recomputer.Recompute(ctx)
	r.metrics.RecordRecompute(err)
	return res, err
}
