package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/balance"
	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
)

// Balance command flags.
var balanceFlagOn string

// balanceCmd summarizes a period.
var balanceCmd = &cobra.Command{
	Use:     "balance [day|week|month|year]",
	Aliases: []string{"bal"},
	Short:   "Show work, plan and balance of a period",
	Long: `Show worked time, break time, planned time and the overtime balance of a
day, week, month or year. The period defaults to the current week.

Examples:
  timescribe balance
  timescribe balance day --on yesterday
  timescribe balance week --on "last week"
  timescribe balance month --on 2024-02
  timescribe balance year --on 2023`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{balance.PeriodDay, balance.PeriodWeek, balance.PeriodMonth, balance.PeriodYear},
	RunE:      runBalance,
}

// balancesCmd lists the stored weekly balances.
var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "List the stored weekly balances with their running total",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := ctx.WeekBalances.List()
		if err != nil {
			return err
		}
		if isJSON() {
			return formatter.JSON(api.NewBalancesResponse(rows))
		}
		cli().PrintBalances(rows)
		return nil
	},
}

// recomputeCmd rebuilds the weekly balances.
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild the weekly balances from the recorded intervals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := ctx.Recompute(cmd.Context())
		if err != nil {
			return err
		}
		if isJSON() {
			return formatter.JSON(res)
		}
		cli().PrintRecompute(res)
		return nil
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceFlagOn, "on", "", "A date inside the period (default today)")

	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(recomputeCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	period := balance.PeriodWeek
	if len(args) > 0 {
		period = args[0]
	}

	date, err := parsePeriodDate(period, balanceFlagOn)
	if err != nil {
		return err
	}
	s, err := ctx.Engine.Summarize(cmd.Context(), period, date)
	if err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(s)
	}
	cli().PrintSummary(s)
	return nil
}

// parsePeriodDate parses the --on value the way the period expects it.
func parsePeriodDate(period, on string) (time.Time, error) {
	clock := ctx.Clock()
	switch period {
	case balance.PeriodDay, balance.PeriodWeek:
		return clock.ParseDate(on)
	case balance.PeriodMonth:
		if on == "" {
			return clock.ParseMonth("today")
		}
		return clock.ParseMonth(on)
	case balance.PeriodYear:
		if on == "" {
			return clock.ParseYear("today")
		}
		return clock.ParseYear(on)
	}
	return time.Time{}, tserrors.NewUserErrorWithField("period", period,
		"unknown period "+period, "Use day, week, month or year.")
}
