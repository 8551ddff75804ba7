package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// Stop command flags.
var stopFlagAt string

// stopCmd represents the stop command.
var stopCmd = &cobra.Command{
	Use:     "stop [TIMESTAMP]",
	Aliases: []string{"end", "e"},
	Short:   "Stop the running interval",
	Long: `Stop the running work or break interval.

Examples:
  timescribe stop
  timescribe stop 10 minutes ago
  timescribe stop --at 5pm`,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, runtime.ActionStop, atExpression(stopFlagAt, args), "")
	},
}

// pingCmd records a heartbeat on the running interval.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Record a heartbeat for the running interval",
	Long: `Record a heartbeat for the running interval. Intervals that go without a
heartbeat for longer than the configured threshold are closed at their last
heartbeat by the daemon.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE:        runPing,
}

func init() {
	stopCmd.Flags().StringVar(&stopFlagAt, "at", "", "When the interval ends (default now)")

	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	var resp *api.PingResponse
	if remote != nil {
		var err error
		if resp, err = remote.Ping(cmd.Context()); err != nil {
			return err
		}
	} else {
		iv, err := ctx.Tracker.Ping(cmd.Context())
		if err != nil {
			return err
		}
		resp = &api.PingResponse{Running: iv != nil, Interval: iv}
	}

	if isJSON() {
		return formatter.JSON(resp)
	}
	if !resp.Running {
		cli().Muted("Timer is not running.")
		return nil
	}
	cli().Success("Heartbeat recorded for " + string(resp.Interval.Type) + " interval since " + formatter.Clock(resp.Interval.StartedAt))
	return nil
}
