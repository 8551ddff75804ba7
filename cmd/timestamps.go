package cmd

import (
	"time"

	"github.com/spf13/cobra"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/schedule"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

// Timestamps command flags.
var (
	timestampsFlagFrom  string
	timestampsFlagTo    string
	timestampsFlagAll   bool
	timestampsFlagForce bool

	timestampsAddFlagStart    string
	timestampsAddFlagEnd      string
	timestampsAddFlagDuration time.Duration
	timestampsAddFlagNote     string
)

// timestampsCmd groups the ledger commands.
var timestampsCmd = &cobra.Command{
	Use:     "timestamps",
	Aliases: []string{"ts", "log"},
	Short:   "List and delete recorded intervals",
}

var timestampsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded intervals",
	Long: `List recorded intervals overlapping a date range. Without flags the
intervals of today are listed.

Examples:
  timescribe timestamps list
  timescribe timestamps list --from "last week"
  timescribe timestamps list --from 2024-03-01 --to 2024-03-31
  timescribe timestamps list --all`,
	Args: cobra.NoArgs,
	RunE: runTimestampsList,
}

var timestampsAddCmd = &cobra.Command{
	Use:   "add [work|break]",
	Short: "Record a completed interval",
	Long: `Record a completed interval by hand. Give the start and either the end
or the duration; the end defaults to now. The type defaults to work.

Examples:
  timescribe timestamps add --start 9am --end 12:30
  timescribe timestamps add --start "yesterday 14:00" --duration 2h --note review
  timescribe timestamps add break --start 12:30 --duration 45m`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(model.IntervalWork), string(model.IntervalBreak)},
	RunE:      runTimestampsAdd,
}

var timestampsDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a recorded interval",
	Long: `Delete a recorded interval and recompute the weekly balances. Deleting
the running interval stops the timer without recording it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimestampsDelete,
}

func init() {
	timestampsListCmd.Flags().StringVar(&timestampsFlagFrom, "from", "", "First date to list")
	timestampsListCmd.Flags().StringVar(&timestampsFlagTo, "to", "", "Last date to list")
	timestampsListCmd.Flags().BoolVarP(&timestampsFlagAll, "all", "a", false, "List every recorded interval")
	timestampsDeleteCmd.Flags().BoolVar(&timestampsFlagForce, "force", false, "Skip confirmation prompt")
	timestampsAddCmd.Flags().StringVarP(&timestampsAddFlagStart, "start", "s", "", "When the interval started")
	timestampsAddCmd.Flags().StringVarP(&timestampsAddFlagEnd, "end", "e", "", "When the interval ended (default now)")
	timestampsAddCmd.Flags().DurationVarP(&timestampsAddFlagDuration, "duration", "d", 0, "Length of the interval, instead of --end")
	timestampsAddCmd.Flags().StringVarP(&timestampsAddFlagNote, "note", "n", "", "Note for the interval")
	_ = timestampsAddCmd.MarkFlagRequired("start")
	timestampsAddCmd.MarkFlagsMutuallyExclusive("end", "duration")

	timestampsCmd.AddCommand(timestampsListCmd)
	timestampsCmd.AddCommand(timestampsAddCmd)
	timestampsCmd.AddCommand(timestampsDeleteCmd)
	rootCmd.AddCommand(timestampsCmd)
}

func runTimestampsList(cmd *cobra.Command, args []string) error {
	now := ctx.Now()

	var (
		ivs []*model.Interval
		err error
	)
	if timestampsFlagAll {
		ivs, err = ctx.Intervals.List()
	} else {
		from, to, ranged, rerr := dateRange(timestampsFlagFrom, timestampsFlagTo)
		if rerr != nil {
			return rerr
		}
		if !ranged {
			from = schedule.StartOfDay(now.In(ctx.Location))
			to = schedule.NextDay(from)
		}
		ivs, err = ctx.Intervals.ListOverlapping(from, to, now)
	}
	if err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(output.NewIntervalsResponse(ivs, now))
	}
	cli().PrintIntervals(ivs, now)
	return nil
}

func runTimestampsAdd(cmd *cobra.Command, args []string) error {
	typ := model.IntervalWork
	if len(args) > 0 {
		var ok bool
		if typ, ok = model.ParseIntervalType(args[0]); !ok {
			return tserrors.InvalidInput(tserrors.ErrInvalidType, "type", args[0])
		}
	}

	clock := ctx.Clock()
	start, err := clock.ParseTimestamp(timestampsAddFlagStart)
	if err != nil {
		return err
	}
	end := ctx.Now()
	switch {
	case timestampsAddFlagDuration > 0:
		end = start.Add(timestampsAddFlagDuration)
	case timestampsAddFlagEnd != "":
		if end, err = clock.ParseTimestamp(timestampsAddFlagEnd); err != nil {
			return err
		}
	}

	iv, err := ctx.AddInterval(cmd.Context(), typ, start, end, timestampsAddFlagNote)
	if err != nil {
		return err
	}
	if isJSON() {
		return formatter.JSON(iv)
	}
	cli().Success("Recorded " + string(iv.Type) + " interval " + iv.ID())
	cli().PrintIntervals([]*model.Interval{iv}, end)
	return nil
}

func runTimestampsDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	// Confirm deletion unless --force is used
	if !timestampsFlagForce {
		iv, err := ctx.Intervals.Get(id)
		if storage.IsErrKeyNotFound(err) {
			return tserrors.InvalidInput(tserrors.ErrIntervalNotFound, "id", id)
		}
		if err != nil {
			return err
		}
		c := cli()
		c.PrintIntervals([]*model.Interval{iv}, ctx.Now())
		confirmed, err := promptConfirmation(cmd, "Delete this interval? (y/N): ")
		if err != nil {
			return err
		}
		if !confirmed {
			c.Muted("Cancelled")
			return nil
		}
	}

	if err := ctx.DeleteInterval(cmd.Context(), id); err != nil {
		return err
	}
	return printDeleted("interval", id)
}

// dateRange parses inclusive --from/--to dates into a half-open range. A
// missing bound is open-ended; ranged is false when both are missing.
func dateRange(fromStr, toStr string) (from, to time.Time, ranged bool, err error) {
	if fromStr == "" && toStr == "" {
		return time.Time{}, time.Time{}, false, nil
	}

	clock := ctx.Clock()
	from = time.Unix(0, 0).In(ctx.Location)
	to = schedule.NextDay(ctx.Now().In(ctx.Location)).AddDate(100, 0, 0)
	if fromStr != "" {
		if from, err = clock.ParseDate(fromStr); err != nil {
			return from, to, false, err
		}
	}
	if toStr != "" {
		var last time.Time
		if last, err = clock.ParseDate(toStr); err != nil {
			return from, to, false, err
		}
		to = schedule.NextDay(last)
	}
	if !to.After(from) {
		return from, to, false, tserrors.InvalidInput(tserrors.ErrEndBeforeStart, "to", toStr)
	}
	return from, to, true, nil
}
