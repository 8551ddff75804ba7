package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/api"
	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/parser"
)

// Absence command flags.
var (
	absenceFlagDuration string
	absenceFlagNote     string
	absenceFlagFrom     string
	absenceFlagTo       string
)

// absenceCmd groups the absence commands.
var absenceCmd = &cobra.Command{
	Use:     "absence",
	Aliases: []string{"off"},
	Short:   "Manage vacation and sick days",
	Long: `Manage vacation and sick days. An absence reduces the planned time of
its day by a fraction of the scheduled hours.`,
}

var absenceAddCmd = &cobra.Command{
	Use:   "add TYPE DATE",
	Short: "Record an absence",
	Long: `Record an absence. TYPE is vacation or sick. --duration is "full",
"half" or a fraction of a day such as 0.25.

Examples:
  timescribe absence add vacation 2024-05-10
  timescribe absence add sick today --duration half --note dentist`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(model.AbsenceVacation), string(model.AbsenceSick)},
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := model.ParseAbsenceType(args[0])
		if !ok {
			return tserrors.InvalidInput(tserrors.ErrInvalidType, "type", args[0])
		}
		date, err := ctx.Clock().ParseDate(args[1])
		if err != nil {
			return err
		}
		duration, err := parser.ParseDayFraction(absenceFlagDuration)
		if err != nil {
			return err
		}
		a, err := ctx.AddAbsence(cmd.Context(), typ, date, duration, absenceFlagNote)
		if err != nil {
			return err
		}
		if isJSON() {
			return formatter.JSON(api.NewAbsenceDTO(a))
		}
		cli().Success("Recorded " + string(a.Type) + " on " + a.DateString() + " (" + a.Duration.String() + " day), id " + a.ID())
		return nil
	},
}

var absenceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List absences",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, ranged, err := dateRange(absenceFlagFrom, absenceFlagTo)
		if err != nil {
			return err
		}
		var absences []*model.Absence
		if ranged {
			absences, err = ctx.Absences.ListBetween(from, to.AddDate(0, 0, -1))
		} else {
			absences, err = ctx.Absences.List()
		}
		if err != nil {
			return err
		}
		if isJSON() {
			dtos := make([]api.AbsenceDTO, len(absences))
			for i, a := range absences {
				dtos[i] = api.NewAbsenceDTO(a)
			}
			return formatter.JSON(dtos)
		}
		cli().PrintAbsences(absences)
		return nil
	},
}

var absenceDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete an absence",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ctx.DeleteAbsence(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printDeleted("absence", args[0])
	},
}

func init() {
	absenceAddCmd.Flags().StringVarP(&absenceFlagDuration, "duration", "d", "full", "Fraction of the day: full, half or a decimal")
	absenceAddCmd.Flags().StringVarP(&absenceFlagNote, "note", "n", "", "Note for the absence")
	absenceListCmd.Flags().StringVar(&absenceFlagFrom, "from", "", "First date to list")
	absenceListCmd.Flags().StringVar(&absenceFlagTo, "to", "", "Last date to list")

	absenceCmd.AddCommand(absenceAddCmd)
	absenceCmd.AddCommand(absenceListCmd)
	absenceCmd.AddCommand(absenceDeleteCmd)
	rootCmd.AddCommand(absenceCmd)
}
