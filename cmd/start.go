package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// Timer command flags.
var (
	startFlagAt   string
	startFlagNote string
	breakFlagAt   string
	breakFlagNote string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:     "start [TIMESTAMP]",
	Aliases: []string{"work", "w"},
	Short:   "Start a work interval",
	Long: `Start a work interval. A running break is closed at the same instant.

Starting while already working keeps the running interval. With --note a
new interval begins. A backdated start must not reach into a recorded
interval or before the running one.

Examples:
  timescribe start
  timescribe start 10 minutes ago
  timescribe start --at 9am --note 'sprint planning'`,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, runtime.ActionWork, atExpression(startFlagAt, args), startFlagNote)
	},
}

// breakCmd represents the break command.
var breakCmd = &cobra.Command{
	Use:     "break [TIMESTAMP]",
	Aliases: []string{"b", "pause"},
	Short:   "Start a break",
	Long: `Start a break interval. A running work interval is closed at the same
instant.

Examples:
  timescribe break
  timescribe break 5 minutes ago --note lunch`,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, runtime.ActionBreak, atExpression(breakFlagAt, args), breakFlagNote)
	},
}

func init() {
	startCmd.Flags().StringVar(&startFlagAt, "at", "", "When the interval starts (default now)")
	startCmd.Flags().StringVarP(&startFlagNote, "note", "n", "", "Note for the interval")
	breakCmd.Flags().StringVar(&breakFlagAt, "at", "", "When the break starts (default now)")
	breakCmd.Flags().StringVarP(&breakFlagNote, "note", "n", "", "Note for the break")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(breakCmd)
}

// atExpression prefers the --at flag over positional words.
func atExpression(flag string, args []string) string {
	if flag != "" {
		return flag
	}
	return strings.Join(args, " ")
}

// runTransition applies a timer action locally or through the daemon and
// prints the outcome.
func runTransition(cmd *cobra.Command, action, at, note string) error {
	var (
		tr  *tracker.Transition
		now time.Time
		err error
	)
	if remote != nil {
		tr, err = remote.Transition(cmd.Context(), action, at, note)
		now = time.Now()
	} else {
		now = ctx.Now()
		var when time.Time
		if at != "" {
			if when, err = ctx.Clock().ParseTimestamp(at); err != nil {
				return err
			}
		}
		tr, err = ctx.Transition(cmd.Context(), action, when, note)
	}
	if err != nil {
		return err
	}
	if action == runtime.ActionStop && tr.From == tracker.StateStopped {
		return tserrors.ErrNoActiveTimer
	}

	if isJSON() {
		return output.NewJSONFormatter(formatter).PrintTransition(tr)
	}
	cli().PrintTransition(tr, now)
	return nil
}
