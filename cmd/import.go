package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/logging"
)

// Import command flags.
var importFlagDryRun bool

// importCmd represents the import command.
var importCmd = &cobra.Command{
	Use:     "import SOURCE FILE",
	Aliases: []string{"imp", "i"},
	Short:   "Import intervals from another tracker's export",
	Long: `Import intervals from another tracker's export. Rows are clamped to a
sequence, split at midnight and reconciled against the recorded intervals;
recorded intervals always win. Pass - as FILE to read stdin.

Sources:
  clockify   Clockify detailed report, CSV
  json       a list of {"begin", "end", "notes"} objects, bare or under "entries"

Examples:
  timescribe import clockify report.csv
  timescribe import clockify report.csv --dry-run
  cat entries.json | timescribe import json -`,
	Args:        cobra.ExactArgs(2),
	ValidArgs:   importer.Names(),
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE:        runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importFlagDryRun, "dry-run", false, "Preview import without making changes")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	source, filename := args[0], args[1]

	data, err := readInput(cmd, filename)
	if err != nil {
		return err
	}

	var res *importer.Result
	if remote != nil {
		res, err = remote.Import(cmd.Context(), source, data, importFlagDryRun)
	} else {
		res, err = ctx.Import(cmd.Context(), source, data, importFlagDryRun)
	}
	if err != nil {
		return err
	}
	logging.FromContext(cmd.Context()).Debug("import finished",
		logging.KeyPath, filename,
		logging.KeyCount, len(res.Intervals))

	if isJSON() {
		return formatter.JSON(res)
	}
	cli().PrintImport(res)
	return nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, filename string) ([]byte, error) {
	if filename == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
