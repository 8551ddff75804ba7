package daemon

import (
	goruntime "runtime"
	"sort"
	"sync"
	"time"

	"github.com/kyukei-panda/timescribe/internal/api"
)

// HealthChecker runs the named checks reported by GET /api/health.
type HealthChecker struct {
	mu        sync.RWMutex
	startTime time.Time
	checks    map[string]func() error
	metrics   *Metrics
}

// NewHealthChecker creates a new health checker reporting metrics.
func NewHealthChecker(metrics *Metrics) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		checks:    make(map[string]func() error),
		metrics:   metrics,
	}
}

// AddCheck adds a named check. A non-nil error marks the daemon degraded.
func (h *HealthChecker) AddCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RemoveCheck removes a named check.
func (h *HealthChecker) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// Checks runs every check, sorted by name.
func (h *HealthChecker) Checks() []api.CheckResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make([]api.CheckResult, 0, len(h.checks))
	for name, check := range h.checks {
		result := api.CheckResult{Name: name, Healthy: true}
		if err := check(); err != nil {
			result.Healthy = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// IsHealthy reports whether every check passes.
func (h *HealthChecker) IsHealthy() bool {
	for _, c := range h.Checks() {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// Counters returns the job counters plus process figures.
func (h *HealthChecker) Counters() map[string]int64 {
	counters := map[string]int64{}
	if h.metrics != nil {
		counters = h.metrics.Counters()
	}
	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)
	counters["goroutines"] = int64(goruntime.NumGoroutine())
	counters["heap_alloc_bytes"] = int64(mem.HeapAlloc)
	counters["uptime_seconds"] = int64(h.Uptime().Seconds())
	return counters
}

// Uptime returns how long the checker has existed.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}
