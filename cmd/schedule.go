package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/parser"
)

// Schedule command flags.
var scheduleFlagFrom string

// scheduleCmd groups the work schedule commands.
var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"plan"},
	Short:   "Manage work schedule versions",
	Long: `Manage work schedule versions. A schedule sets the planned hours of each
weekday from its valid-from date until the next version starts. Dates before
the first version, and setups without any, plan the configured fallback
hours on Monday to Friday.`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add HOURS",
	Short: "Add a schedule version",
	Long: `Add a schedule version. HOURS is one value for Monday to Friday, or seven
comma separated values Monday first.

Examples:
  timescribe schedule add 8
  timescribe schedule add 8,8,8,8,6,0,0 --from 2024-04-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validFrom, err := ctx.Clock().ParseDate(scheduleFlagFrom)
		if err != nil {
			return err
		}
		hours, err := parser.ParseWeekHours(args[0])
		if err != nil {
			return err
		}
		s, err := ctx.AddSchedule(cmd.Context(), validFrom, hours)
		if err != nil {
			return err
		}
		if isJSON() {
			return formatter.JSON(api.NewScheduleDTO(s))
		}
		cli().Success("Schedule " + s.ID() + " valid from " + formatter.Date(s.ValidFrom) +
			", " + s.WeeklyHours().String() + "h per week")
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List schedule versions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schedules, err := ctx.Schedules.List()
		if err != nil {
			return err
		}
		if isJSON() {
			dtos := make([]api.ScheduleDTO, len(schedules))
			for i, s := range schedules {
				dtos[i] = api.NewScheduleDTO(s)
			}
			return formatter.JSON(dtos)
		}
		cli().PrintSchedules(schedules)
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a schedule version",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ctx.DeleteSchedule(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printDeleted("schedule", args[0])
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleFlagFrom, "from", "today", "First day the version applies to")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// printDeleted confirms a deletion.
func printDeleted(kind, id string) error {
	if isJSON() {
		return formatter.JSON(map[string]string{"status": "deleted", "type": kind, "id": id})
	}
	cli().Success("Deleted " + kind + " " + id)
	return nil
}
