package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
	"github.com/kyukei-panda/timescribe/internal/scheduler"
)

// Daemon manages the background process.
type Daemon struct {
	settings *config.Settings
	dir      string
	pidFile  *PIDFile
	debug    bool

	// args are passed to the re-executed binary in StartBackground.
	args []string
}

// Status represents the daemon status.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Addr      string    `json:"addr,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
}

// State is written next to the PID file while the daemon runs.
type State struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// New creates a daemon manager keeping its PID and state files in dir.
// An empty dir means StateDir().
func New(settings *config.Settings, dir string) *Daemon {
	if dir == "" {
		dir = StateDir()
	}
	return &Daemon{
		settings: settings,
		dir:      dir,
		pidFile:  NewPIDFile(filepath.Join(dir, PIDFileName)),
	}
}

// SetDebug enables debug mode.
func (d *Daemon) SetDebug(debug bool) {
	d.debug = debug
}

// SetArgs sets extra arguments for the background process, such as
// "--config <path>".
func (d *Daemon) SetArgs(args ...string) {
	d.args = args
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.IsRunning()
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{LogPath: d.settings.Log.File}
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return status
	}
	status.Running = true
	status.PID = pid
	if state, err := d.readState(); err == nil {
		status.Addr = state.Addr
		status.StartedAt = state.StartedAt
		status.Uptime = output.FormatDuration(time.Since(state.StartedAt))
	}
	return status
}

// Client returns an API client for the running daemon.
func (d *Daemon) Client() (*api.Client, error) {
	if !d.IsRunning() {
		return nil, ErrNotRunning
	}
	addr := d.settings.Server.Addr
	if state, err := d.readState(); err == nil && state.Addr != "" {
		addr = state.Addr
	}
	return api.NewClient(addr), nil
}

// Run runs the daemon in the foreground over rt until ctx is cancelled or
// a shutdown signal arrives. The caller owns rt.
func (d *Daemon) Run(ctx context.Context, rt *runtime.Context) error {
	if d.IsRunning() {
		return ErrAlreadyRunning
	}

	sigs := NewSignalHandler()
	ctx, stop := sigs.Context(ctx)
	defer stop()
	log := logging.FromContext(ctx).With("component", "daemon")

	ln, err := net.Listen("tcp", d.settings.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.settings.Server.Addr, err)
	}

	if err := d.pidFile.Write(); err != nil {
		ln.Close()
		return err
	}
	defer d.cleanup()
	if err := d.writeState(&State{
		PID:       os.Getpid(),
		Addr:      ln.Addr().String(),
		StartedAt: time.Now(),
	}); err != nil {
		ln.Close()
		return err
	}

	metrics := NewMetrics()
	health := NewHealthChecker(metrics)
	sched := d.newScheduler(rt, metrics, health)
	if err := sched.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	defer sched.Stop()

	handler := api.NewHandler(rt)
	handler.SetHealthReporter(health)
	server := api.NewServer(ln.Addr().String(), api.NewRouter(handler, d.settings.Server.AllowedOrigins))

	log.Info("daemon started", "pid", os.Getpid(), "addr", ln.Addr().String())
	serveErr := server.Serve(ctx, ln)

	args := []any{"metrics", metrics.Snapshot()}
	if sig := sigs.Received(); sig != nil {
		args = append(args, "signal", sig.String())
	}
	log.Info("daemon stopping", args...)
	return serveErr
}

func (d *Daemon) newScheduler(rt *runtime.Context, metrics *Metrics, health *HealthChecker) *scheduler.Scheduler {
	sched := scheduler.NewScheduler(scheduler.Specs{
		Refresh:   d.settings.Scheduler.Refresh,
		Recompute: d.settings.Scheduler.Recompute,
	}, rt.Location)
	sched.SetDebug(d.debug)

	timer := countingTimer{Timer: rt.Tracker, metrics: metrics, now: rt.Now}
	sched.SetTimerChecker(scheduler.NewTimerChecker(timer, func() {
		metrics.RecordReset()
		sched.TriggerRecompute()
	}))

	job := scheduler.NewRecomputeJob(countingRecomputer{Recomputer: rt, metrics: metrics})
	sched.SetRecomputeJob(job)

	closer := scheduler.NewDayCloser(rt.Engine)
	closer.Closed = func(*balance.Summary) { metrics.RecordDayClosed() }
	sched.SetDayCloser(closer)

	health.AddCheck("recompute", func() error {
		_, err := job.LastRun()
		return err
	})
	health.AddCheck("scheduler", func() error {
		if sched.NextRun().IsZero() {
			return fmt.Errorf("no scheduled jobs")
		}
		return nil
	})
	return sched
}

// StartBackground re-executes the binary as a detached foreground daemon
// and waits for it to record its PID.
func (d *Daemon) StartBackground() (int, error) {
	if pid := d.pidFile.RunningPID(); pid != 0 {
		return pid, ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	args := append([]string{"daemon", "start", "--foreground"}, d.args...)
	if d.debug {
		args = append(args, "--debug")
	}
	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil

	// Panics and early failures go to the same file the daemon logs to.
	logPath := d.settings.Log.File
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			defer f.Close()
			cmd.Stdout = f
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	go cmd.Wait()

	deadline := time.Now().Add(d.settings.Daemon.StartupWait)
	for {
		if pid := d.pidFile.RunningPID(); pid != 0 {
			return pid, nil
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if msg := lastLogError(logPath); msg != "" {
		return 0, fmt.Errorf("daemon failed to start: %s", msg)
	}
	return 0, fmt.Errorf("daemon failed to start (check logs: %s)", logPath)
}

// Stop signals the running daemon and waits up to the kill timeout before
// killing it.
func (d *Daemon) Stop() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}

	deadline := time.Now().Add(d.settings.Daemon.KillTimeout)
	for IsProcessRunning(pid) {
		if time.Now().After(deadline) {
			logging.Warn("daemon did not exit in time, killing", "pid", pid)
			process.Kill()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	d.cleanup()
	return nil
}

func (d *Daemon) statePath() string {
	return filepath.Join(d.dir, StateFileName)
}

func (d *Daemon) writeState(state *State) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(d.statePath(), data, 0o644)
}

func (d *Daemon) readState() (*State, error) {
	data, err := os.ReadFile(d.statePath())
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// cleanup removes the PID and state files.
func (d *Daemon) cleanup() {
	if err := d.pidFile.Remove(); err != nil {
		logging.Warn("failed to remove PID file", logging.KeyError, err)
	}
	if err := os.Remove(d.statePath()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, logging.KeyPath, d.statePath())
	}
}
