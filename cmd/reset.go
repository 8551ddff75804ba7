package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/storage"
)

// Reset command flags.
var resetFlagForce bool

// resetCmd deletes the ledger.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every recorded interval and weekly balance",
	Long: `Delete every recorded interval and weekly balance. Schedules and
absences are kept. A backup of the database is written first.

Examples:
  timescribe reset
  timescribe reset --force   # Skip the confirmation prompt`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetFlagForce, "force", false, "Skip confirmation prompt")

	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ivs, err := ctx.Intervals.List()
	if err != nil {
		return err
	}

	if !resetFlagForce {
		confirmed, err := promptConfirmation(cmd, fmt.Sprintf("Delete %d intervals and all weekly balances? (y/N): ", len(ivs)))
		if err != nil {
			return err
		}
		if !confirmed {
			cli().Muted("Cancelled")
			return nil
		}
	}

	var backup string
	if !ctx.Settings.InMemory() {
		if backup, err = storage.CreateBackup(ctx.DB); err != nil {
			return fmt.Errorf("backup before reset failed, nothing was deleted: %w", err)
		}
	}

	n, err := ctx.Reset(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return formatter.JSON(map[string]any{"status": "reset", "deleted": n, "backup": backup})
	}
	cli().Success(fmt.Sprintf("Deleted %d intervals", n))
	if backup != "" {
		cli().Muted("Backup: " + backup)
	}
	return nil
}

// promptConfirmation prompts the user for a yes/no confirmation.
func promptConfirmation(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && response == "" {
		// Empty input means no
		return false, nil
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
