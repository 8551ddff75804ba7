package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/balance"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// todayCmd represents the today command.
var todayCmd = &cobra.Command{
	Use:     "today",
	Aliases: []string{"t", "td"},
	Short:   "Show today's intervals and balance",
	Long: `Display today's recorded intervals followed by the day's work, break,
plan and balance.

Examples:
  timescribe today
  timescribe t`,
	Args: cobra.NoArgs,
	RunE: runToday,
}

func init() {
	rootCmd.AddCommand(todayCmd)
}

// todayResponse is the JSON form of the today command.
type todayResponse struct {
	*output.IntervalsResponse
	Summary *balance.Summary `json:"summary"`
}

func runToday(cmd *cobra.Command, args []string) error {
	now := ctx.Now()
	start := schedule.StartOfDay(now.In(ctx.Location))

	ivs, err := ctx.Intervals.ListOverlapping(start, schedule.NextDay(start), now)
	if err != nil {
		return err
	}
	summary, err := ctx.Engine.Day(cmd.Context(), start)
	if err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(todayResponse{
			IntervalsResponse: output.NewIntervalsResponse(ivs, now),
			Summary:           summary,
		})
	}

	c := cli()
	c.Title("Today - " + formatter.Date(start))
	c.PrintIntervals(ivs, now)
	c.Println("")
	c.PrintSummary(summary)
	if open := openInterval(ivs); open != nil {
		c.Muted("Running " + string(open.Type) + " since " + formatter.Clock(open.StartedAt))
	}
	return nil
}

func openInterval(ivs []*model.Interval) *model.Interval {
	for _, iv := range ivs {
		if iv.IsOpen() {
			return iv
		}
	}
	return nil
}
