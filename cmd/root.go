// Package cmd provides the CLI commands for TimeScribe.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/daemon"
	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagConfig string
)

// ctx is the shared runtime context. It stays nil for commands that do not
// open the database, and when the daemon serves the command instead.
var ctx *runtime.Context

// settings are the loaded settings of every command that needs them.
var settings *config.Settings

// formatter writes command output.
var formatter *output.Formatter

// remote is set when the daemon holds the database lock and the command can
// be served through its HTTP API.
var remote *api.Client

// annotationRuntime tells the pre-run hook how much of the runtime a command
// needs. Commands without it open the database.
const annotationRuntime = "runtime"

const (
	// runtimeNone skips settings and database.
	runtimeNone = "none"
	// runtimeSettings loads the settings only.
	runtimeSettings = "settings"
	// runtimeRemote opens the database, or falls back to the daemon's API
	// when the daemon holds it.
	runtimeRemote = "remote"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "timescribe",
	Short: "Track working time against a weekly plan",
	Long: `TimeScribe records work and break intervals, imports exports from other
trackers and keeps a running overtime balance against your work schedule.

Examples:
  timescribe start
  timescribe break
  timescribe stop --at "10 minutes ago"
  timescribe balance week --on "last week"
  timescribe import clockify export.csv --dry-run`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Annotations:   map[string]string{annotationRuntime: runtimeRemote},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: show current status
		return runStatus(cmd, args)
	},
}

// setup initializes logging, settings and the runtime for cmd.
func setup(cmd *cobra.Command) error {
	if flagDebug {
		logging.InitDebug()
	} else {
		logging.Init(logging.Config{Level: slog.LevelWarn, Output: cmd.ErrOrStderr()})
	}

	c := cmd.Context()
	if c == nil {
		c = context.Background()
	}
	c = logging.WithRequestID(c, logging.GenerateRequestID())
	cmd.SetContext(logging.WithOperation(c, cmd.CommandPath()))

	mode := runtimeMode(cmd)
	formatter = output.NewFormatter()
	formatter.Writer = cmd.OutOrStdout()
	formatter.Format = output.ParseFormat(flagFormat)
	formatter.ColorMode = output.ParseColorMode(flagColor)
	if mode == runtimeNone {
		return nil
	}

	s, err := config.Load(configPath())
	if err != nil {
		return err
	}
	settings = s
	if loc, err := s.Location(); err == nil {
		formatter.Location = loc
	}
	if mode == runtimeSettings {
		return nil
	}

	rt, err := openRuntime(cmd)
	if err == nil {
		ctx = rt
		formatter = rt.Formatter
		return nil
	}
	if mode == runtimeRemote && tserrors.Is(err, tserrors.ErrLockHeld) {
		client, cerr := daemon.New(settings, "").Client()
		if cerr == nil {
			logging.DebugLog("database locked, using daemon API", "addr", client.BaseURL())
			remote = client
			return nil
		}
	}
	return err
}

// openRuntime opens the database with the loaded settings.
func openRuntime(cmd *cobra.Command) (*runtime.Context, error) {
	opts := runtime.DefaultOptions()
	opts.ConfigPath = configPath()
	opts.Settings = settings
	opts.Format = output.ParseFormat(flagFormat)
	opts.ColorMode = output.ParseColorMode(flagColor)
	opts.Debug = flagDebug

	rt, err := runtime.New(opts)
	if err != nil {
		return nil, err
	}
	rt.Formatter.Writer = cmd.OutOrStdout()
	return rt, nil
}

// teardown closes the runtime and forgets per-invocation state.
func teardown() error {
	var err error
	if ctx != nil {
		err = ctx.Close()
	}
	ctx, remote = nil, nil
	return err
}

// runtimeMode returns the runtime annotation of cmd or its nearest parent.
func runtimeMode(cmd *cobra.Command) string {
	switch cmd.Name() {
	case "completion", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return runtimeNone
	}
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[annotationRuntime]; ok {
			if c != cmd && c == rootCmd {
				break
			}
			return mode
		}
	}
	return ""
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}

// runStatus shows the timer state with today's and this week's figures.
func runStatus(cmd *cobra.Command, args []string) error {
	var (
		status *output.Status
		err    error
	)
	if remote != nil {
		status, err = remote.Status(cmd.Context())
	} else {
		status, err = ctx.Status(cmd.Context())
	}
	if err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(status)
	}
	cli().PrintStatus(status)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx and prints a failure the
// way the selected format expects.
func ExecuteContext(c context.Context) error {
	err := rootCmd.ExecuteContext(c)
	if err != nil {
		printError(rootCmd, err)
		_ = teardown()
	}
	return err
}

func init() {
	// Assigned here rather than in the literal to break the rootCmd
	// initialization cycle through setup and runtimeMode.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	}
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Settings file (default $XDG_CONFIG_HOME/timescribe/config.yaml)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// statusCmd shows the timer status.
var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the timer state and today's balance",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE:        runStatus,
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationRuntime: runtimeNone},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("timescribe %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
		cmd.Println("")
		cmd.Println("Based on Zeit (https://github.com/mrusme/zeit)")
		cmd.Println("Licensed under SEGV License v1.0")
	},
}

// printError reports err on stderr, or as a JSON document on stdout.
func printError(cmd *cobra.Command, err error) {
	msg, suggestion := runtime.Describe(err)
	if output.ParseFormat(flagFormat) == output.FormatJSON {
		f := output.NewFormatter()
		f.Writer = cmd.OutOrStdout()
		_ = output.NewJSONFormatter(f).PrintError("error", msg, suggestion)
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error: "+runtime.FormatError(err))
}

func cli() *output.CLIFormatter {
	return output.NewCLIFormatter(formatter)
}

func isJSON() bool {
	return formatter != nil && formatter.Format == output.FormatJSON
}
