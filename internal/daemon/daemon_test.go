package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// =============================================================================
// PIDFile Tests
// =============================================================================

func TestPIDFileRoundTrip(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "nested", PIDFileName))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, p.Write())
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, p.IsRunning())
	assert.Equal(t, os.Getpid(), p.RunningPID())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is fine")
	assert.False(t, p.IsRunning())
}

func TestPIDFileInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestPIDFileStaleIsRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	p := NewPIDFile(path)
	// PIDs near the 32-bit limit are not handed out in practice.
	require.NoError(t, p.WritePID(2147483600))

	assert.Equal(t, 0, p.RunningPID())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, IsProcessRunning(os.Getpid()))
	assert.False(t, IsProcessRunning(0))
	assert.False(t, IsProcessRunning(-1))
}

// =============================================================================
// SignalHandler Tests
// =============================================================================

func TestSignalHandlerParentCancel(t *testing.T) {
	h := NewSignalHandler()
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := h.Context(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
	assert.Nil(t, h.Received())
}

func TestSignalHandlerStop(t *testing.T) {
	h := NewSignalHandler()
	ctx, stop := h.Context(context.Background())
	stop()
	stop()
	assert.Error(t, ctx.Err())
}

// =============================================================================
// Logging Tests
// =============================================================================

func TestLogConfig(t *testing.T) {
	settings := config.Default().Log
	settings.File = filepath.Join(t.TempDir(), "daemon.log")
	settings.Level = "warn"

	cfg := LogConfig(settings, true, false)
	assert.Equal(t, settings.File, cfg.File)
	assert.Equal(t, "WARN", cfg.Level.String())
	assert.True(t, cfg.JSON)

	cfg = LogConfig(settings, false, true)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "DEBUG", cfg.Level.String())
	assert.True(t, cfg.AddSource)
}

func TestLastLogError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	assert.Empty(t, lastLogError(path))

	require.NoError(t, os.WriteFile(path, []byte(
		`{"level":"INFO","msg":"scheduler started"}
{"level":"ERROR","msg":"failed to listen on 127.0.0.1:7878"}
{"level":"INFO","msg":"daemon stopping"}
`), 0o644))
	assert.Contains(t, lastLogError(path), "failed to listen")
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	m.RecordTick(now)
	m.RecordTick(now.Add(15 * time.Second))
	m.RecordReset()
	m.RecordRecompute(nil)
	m.RecordRecompute(errors.New("disk gone"))
	m.RecordDayClosed()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.RefreshTicks)
	assert.Equal(t, int64(1), snap.StaleResets)
	assert.Equal(t, int64(1), snap.Recomputes)
	assert.Equal(t, int64(1), snap.RecomputeFailures)
	assert.Equal(t, int64(1), snap.DaysClosed)
	require.NotNil(t, snap.LastTick)
	assert.Equal(t, now.Add(15*time.Second), *snap.LastTick)
	assert.Equal(t, "disk gone", snap.LastError)
	assert.NotNil(t, snap.LastErrorAt)

	counters := m.Counters()
	assert.Equal(t, int64(2), counters["refresh_ticks"])
	assert.Equal(t, int64(1), counters["recompute_failures"])
}

type stubTimer struct {
	pingErr error
}

func (s stubTimer) CheckStopTimeReset(ctx context.Context) (bool, error) { return false, nil }
func (s stubTimer) Ping(ctx context.Context) (*model.Interval, error)    { return nil, s.pingErr }

type stubRecomputer struct {
	err error
}

func (s stubRecomputer) Recompute(ctx context.Context) (*balance.RecomputeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &balance.RecomputeResult{}, nil
}

func TestCountingWrappers(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	timer := countingTimer{Timer: stubTimer{pingErr: errors.New("closed")}, metrics: m, now: time.Now}
	_, err := timer.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	_, err = timer.Ping(ctx)
	assert.Error(t, err)

	_, err = countingRecomputer{Recomputer: stubRecomputer{}, metrics: m}.Recompute(ctx)
	require.NoError(t, err)
	_, err = countingRecomputer{Recomputer: stubRecomputer{err: errors.New("x")}, metrics: m}.Recompute(ctx)
	assert.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.RefreshTicks)
	assert.Equal(t, int64(1), snap.PingErrors)
	assert.Equal(t, int64(1), snap.Recomputes)
	assert.Equal(t, int64(1), snap.RecomputeFailures)
}

// =============================================================================
// HealthChecker Tests
// =============================================================================

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(NewMetrics())
	assert.True(t, h.IsHealthy())
	assert.Empty(t, h.Checks())

	h.AddCheck("zeta", func() error { return nil })
	h.AddCheck("alpha", func() error { return errors.New("down") })

	checks := h.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, "alpha", checks[0].Name)
	assert.False(t, checks[0].Healthy)
	assert.Equal(t, "down", checks[0].Error)
	assert.True(t, checks[1].Healthy)
	assert.False(t, h.IsHealthy())

	h.RemoveCheck("alpha")
	assert.True(t, h.IsHealthy())
}

func TestHealthCheckerCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordReset()
	h := NewHealthChecker(m)

	counters := h.Counters()
	assert.Equal(t, int64(1), counters["stale_resets"])
	assert.GreaterOrEqual(t, counters["goroutines"], int64(1))
	assert.Contains(t, counters, "heap_alloc_bytes")
	assert.Contains(t, counters, "uptime_seconds")
}

// =============================================================================
// Daemon Tests
// =============================================================================

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.Default()
	s.Database.Path = config.MemoryDatabase
	s.Plan.Timezone = "UTC"
	s.Server.Addr = "127.0.0.1:0"
	s.Log.File = filepath.Join(t.TempDir(), "daemon.log")
	return s
}

func TestDaemonNotRunning(t *testing.T) {
	d := New(testSettings(t), t.TempDir())

	status := d.GetStatus()
	assert.False(t, status.Running)
	assert.NotEmpty(t, status.LogPath)

	_, err := d.Client()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, d.Stop(), ErrNotRunning)
}

func TestDaemonRun(t *testing.T) {
	settings := testSettings(t)
	rt, err := runtime.New(runtime.Options{Settings: settings})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	dir := t.TempDir()
	d := New(settings, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, rt) }()

	require.Eventually(t, func() bool {
		return d.GetStatus().Addr != ""
	}, 5*time.Second, 20*time.Millisecond)

	status := d.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.False(t, status.StartedAt.IsZero())

	client, err := d.Client()
	require.NoError(t, err)
	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	names := make([]string, 0, len(health.Checks))
	for _, c := range health.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"recompute", "scheduler"}, names)
	assert.GreaterOrEqual(t, health.Counters["recomputes"], int64(1), "boot recompute")

	assert.ErrorIs(t, d.Run(context.Background(), rt), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.False(t, d.GetStatus().Running)
	_, err = os.Stat(filepath.Join(dir, StateFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestDaemonRunListenError(t *testing.T) {
	settings := testSettings(t)
	settings.Server.Addr = "256.0.0.1:99999"
	rt, err := runtime.New(runtime.Options{Settings: settings})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	dir := t.TempDir()
	err = New(settings, dir).Run(context.Background(), rt)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, PIDFileName))
	assert.True(t, os.IsNotExist(statErr))
}

// =============================================================================
// ServiceManager Tests
// =============================================================================

func TestServiceRender(t *testing.T) {
	m := &ServiceManager{
		ExecutablePath: "/usr/local/bin/timescribe",
		ConfigPath:     "/home/u/.config/timescribe/config.yaml",
		LogPath:        "/home/u/.local/state/timescribe/daemon.log",
		goos:           "linux",
	}
	unit, err := m.Render()
	require.NoError(t, err)
	assert.Contains(t, string(unit),
		"ExecStart=/usr/local/bin/timescribe daemon start --foreground --config /home/u/.config/timescribe/config.yaml")
	assert.Contains(t, string(unit), "StandardError=append:/home/u/.local/state/timescribe/daemon.log")

	m.goos = "darwin"
	plist, err := m.Render()
	require.NoError(t, err)
	assert.Contains(t, string(plist), "<string>"+launchdLabel+"</string>")
	assert.Contains(t, string(plist), "<string>--config</string>")
}

func TestServiceCommand(t *testing.T) {
	m := &ServiceManager{ExecutablePath: "/opt/time scribe/timescribe"}
	args, err := shellquote.Split(m.Command())
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/time scribe/timescribe", "daemon", "start", "--foreground"}, args)

	m.ConfigPath = "/home/u/my config.yaml"
	args, err = shellquote.Split(m.Command())
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/time scribe/timescribe", "daemon", "start", "--foreground",
		"--config", "/home/u/my config.yaml"}, args)
}

func TestServiceUnsupportedOS(t *testing.T) {
	m := &ServiceManager{ExecutablePath: "/usr/bin/timescribe", goos: "plan9"}
	_, err := m.UnitPath()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/usr/bin/timescribe daemon start --foreground")
	assert.False(t, m.IsInstalled())
	assert.Error(t, m.Install())
}

func TestServiceInstallUninstall(t *testing.T) {
	var calls [][]string
	m := &ServiceManager{
		ExecutablePath: "/bin/timescribe",
		LogPath:        "/tmp/daemon.log",
		UnitDir:        filepath.Join(t.TempDir(), "systemd", "user"),
		goos:           "linux",
		run: func(name string, args ...string) error {
			calls = append(calls, append([]string{name}, args...))
			return nil
		},
	}
	assert.False(t, m.IsInstalled())

	require.NoError(t, m.Install())
	assert.True(t, m.IsInstalled())
	path, err := m.UnitPath()
	require.NoError(t, err)
	assert.Equal(t, systemdUnit, filepath.Base(path))

	require.NoError(t, m.Uninstall())
	assert.False(t, m.IsInstalled())

	require.Len(t, calls, 4)
	assert.Equal(t, []string{"systemctl", "--user", "daemon-reload"}, calls[0])
	assert.Equal(t, []string{"systemctl", "--user", "enable", "--now", systemdUnit}, calls[1])
	assert.Equal(t, []string{"systemctl", "--user", "disable", "--now", systemdUnit}, calls[2])
}

func TestServiceInstallCommandError(t *testing.T) {
	m := &ServiceManager{
		ExecutablePath: "/bin/timescribe",
		UnitDir:        t.TempDir(),
		goos:           "darwin",
		run:            func(string, ...string) error { return errors.New("launchctl missing") },
	}
	assert.ErrorContains(t, m.Install(), "launchctl missing")
	path, err := m.UnitPath()
	require.NoError(t, err)
	assert.Equal(t, launchdLabel+".plist", filepath.Base(path))
}
