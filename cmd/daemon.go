package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/daemon"
	"github.com/kyukei-panda/timescribe/internal/logging"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
	daemonLogsFlagFollow      bool
	daemonInstallFlagForce    bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "service"},
	Short:   "Manage the background daemon",
	Long: `Manage the TimeScribe daemon. The daemon closes timers that stopped
receiving heartbeats, recomputes the weekly balances on a schedule and
serves the HTTP API. While it runs it owns the database, and the timer,
status, import and dashboard commands go through its API.

Examples:
  timescribe daemon start
  timescribe daemon status
  timescribe daemon stop
  timescribe daemon logs --tail 20`,
	Annotations: map[string]string{annotationRuntime: runtimeSettings},
	RunE:        runDaemonStatus,
}

// daemonStartCmd starts the daemon.
var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Start the TimeScribe daemon.

Examples:
  timescribe daemon start              # Start in background
  timescribe daemon start --foreground # Start in foreground (for debugging)`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

// serveCmd runs the daemon in the foreground.
var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the daemon in the foreground",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRuntime: runtimeSettings},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemonForeground(cmd)
	},
}

// daemonStopCmd stops the daemon.
var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

// daemonStatusCmd shows daemon status.
var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

// daemonLogsCmd shows daemon logs.
var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View the daemon log file.

Examples:
  timescribe daemon logs
  timescribe daemon logs --tail 50
  timescribe daemon logs --follow`,
	Args: cobra.NoArgs,
	RunE: runDaemonLogs,
}

// daemonInstallCmd installs the daemon as a user service.
var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install daemon as a user service",
	Long: `Install the TimeScribe daemon as a service that starts automatically on login.

On macOS, this creates a launchd agent in ~/Library/LaunchAgents.
On Linux, this creates a systemd user service in ~/.config/systemd/user.

Examples:
  timescribe daemon install
  timescribe daemon install --force   # Reinstall if already installed`,
	Args: cobra.NoArgs,
	RunE: runDaemonInstall,
}

// daemonUninstallCmd removes the user service.
var daemonUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall daemon user service",
	Args:  cobra.NoArgs,
	RunE:  runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")

	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")
	daemonLogsCmd.Flags().BoolVar(&daemonLogsFlagFollow, "follow", false,
		"Follow log output (like tail -f)")

	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Force reinstall if already installed")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(serveCmd)
}

func newDaemon() *daemon.Daemon {
	d := daemon.New(settings, "")
	d.SetDebug(flagDebug)
	if flagConfig != "" {
		d.SetArgs("--config", flagConfig)
	}
	return d
}

// runDaemonStart handles the daemon start command.
func runDaemonStart(cmd *cobra.Command, args []string) error {
	if daemonStartFlagForeground {
		return runDaemonForeground(cmd)
	}

	// The child process opens the database, so this one must not.
	d := newDaemon()
	pid, err := d.StartBackground()
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}
	if err != nil {
		return err
	}

	status := d.GetStatus()
	if isJSON() {
		return formatter.JSON(status)
	}
	cli().Success(fmt.Sprintf("Daemon started (PID: %d)", pid))
	if status.Addr != "" {
		formatter.Printf("  API: http://%s\n", status.Addr)
	}
	return nil
}

// runDaemonForeground opens the database and runs the daemon until a
// shutdown signal arrives. Without a terminal the log goes to the rotating
// log file.
func runDaemonForeground(cmd *cobra.Command) error {
	toFile := !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	logging.Init(daemon.LogConfig(settings.Log, toFile, flagDebug))
	defer logging.Close()

	rt, err := openRuntime(cmd)
	if err != nil {
		logging.Error("failed to open database", logging.KeyError, err)
		return err
	}
	ctx = rt

	d := newDaemon()
	if !isJSON() && isatty.IsTerminal(os.Stdout.Fd()) {
		formatter.Printf("Starting timescribe daemon on %s (foreground mode)...\n", settings.Server.Addr)
	}
	return d.Run(cmd.Context(), rt)
}

// runDaemonStop handles the daemon stop command.
func runDaemonStop(cmd *cobra.Command, args []string) error {
	d := newDaemon()
	status := d.GetStatus()
	if !status.Running {
		if isJSON() {
			return formatter.JSON(status)
		}
		cli().Muted("Daemon is not running")
		return nil
	}

	if err := d.Stop(); err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(map[string]any{"status": "stopped", "pid": status.PID})
	}
	cli().Success(fmt.Sprintf("Daemon stopped (was PID: %d)", status.PID))
	return nil
}

// daemonStatusResponse is the JSON form of daemon status.
type daemonStatusResponse struct {
	*daemon.Status
	Health *api.HealthResponse `json:"health,omitempty"`
}

// runDaemonStatus handles the daemon status command.
func runDaemonStatus(cmd *cobra.Command, args []string) error {
	d := newDaemon()
	resp := daemonStatusResponse{Status: d.GetStatus()}
	if resp.Running {
		if client, err := d.Client(); err == nil {
			health, err := client.Health(cmd.Context())
			if err != nil {
				logging.DebugLog("daemon health unavailable", logging.KeyError, err)
			}
			resp.Health = health
		}
	}

	if isJSON() {
		return formatter.JSON(resp)
	}

	c := cli()
	c.Title("TimeScribe Daemon Status")
	if !resp.Running {
		formatter.Printf("  Status:    stopped\n")
		formatter.Println("")
		c.Muted("Start with: timescribe daemon start")
		return nil
	}
	formatter.Printf("  Status:    running\n")
	formatter.Printf("  PID:       %d\n", resp.PID)
	formatter.Printf("  Uptime:    %s\n", resp.Uptime)
	formatter.Printf("  API:       http://%s\n", resp.Addr)
	formatter.Printf("  Log:       %s\n", resp.LogPath)
	if h := resp.Health; h != nil {
		formatter.Printf("  Health:    %s\n", h.Status)
		for _, check := range h.Checks {
			if check.Healthy {
				formatter.Printf("    %-12s ok\n", check.Name)
			} else {
				formatter.Printf("    %-12s %s\n", check.Name, check.Error)
			}
		}
		for _, name := range []string{"refresh_ticks", "stale_resets", "recomputes", "recompute_failures", "days_closed"} {
			if v, ok := h.Counters[name]; ok {
				formatter.Printf("    %-20s %d\n", name, v)
			}
		}
	}
	return nil
}

// runDaemonLogs handles the daemon logs command.
func runDaemonLogs(cmd *cobra.Command, args []string) error {
	logPath := settings.Log.File

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		cli().Muted("No log file found.")
		formatter.Printf("Log path: %s\n", logPath)
		return nil
	}

	lines, err := tailFile(logPath, daemonLogsFlagTail)
	if err != nil {
		return err
	}
	for _, line := range lines {
		formatter.Println(line)
	}

	if daemonLogsFlagFollow {
		return followLogs(cmd, logPath)
	}
	return nil
}

// tailFile reads the last n lines from a file.
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// followLogs prints lines appended to the log until the command context
// is cancelled.
func followLogs(cmd *cobra.Command, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				formatter.Print(line)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runDaemonInstall handles the daemon install command.
func runDaemonInstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(flagConfig, settings.Log.File)
	if err != nil {
		return err
	}

	if mgr.IsInstalled() && !daemonInstallFlagForce {
		if isJSON() {
			return formatter.JSON(map[string]any{"status": "already_installed"})
		}
		formatter.Println("Service is already installed.")
		formatter.Println("Use --force to reinstall.")
		return nil
	}

	if mgr.IsInstalled() {
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove existing service: %w", err)
		}
	}

	// The service manager starts its own instance.
	if d := newDaemon(); d.IsRunning() {
		if err := d.Stop(); err != nil {
			return err
		}
	}

	if err := mgr.Install(); err != nil {
		return err
	}
	path, _ := mgr.UnitPath()

	if isJSON() {
		return formatter.JSON(map[string]any{"status": "installed", "path": path})
	}
	cli().Success("Service installed: " + path)
	formatter.Println("The daemon now starts automatically when you log in.")
	formatter.Println("To remove: timescribe daemon uninstall")
	return nil
}

// runDaemonUninstall handles the daemon uninstall command.
func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(flagConfig, settings.Log.File)
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		if isJSON() {
			return formatter.JSON(map[string]any{"status": "not_installed"})
		}
		formatter.Println("Service is not installed.")
		return nil
	}

	if err := mgr.Uninstall(); err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(map[string]any{"status": "uninstalled"})
	}
	cli().Success("Service uninstalled")
	formatter.Println("To reinstall: timescribe daemon install")
	return nil
}
