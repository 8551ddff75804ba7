package cmd

import (
	"github.com/spf13/cobra"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

// doctorCmd checks the database.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the database for damaged records",
	Long: `Check every stored record: intervals must decode and end after they
start, at most one interval may be open, absences must cover a valid
fraction of a day.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := storage.CheckIntegrity(ctx.DB)
		if isJSON() {
			if err := formatter.JSON(status); err != nil {
				return err
			}
		} else {
			cli().PrintIntegrity(status)
		}
		if !status.Healthy {
			return tserrors.ErrDatabaseCorrupted
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
