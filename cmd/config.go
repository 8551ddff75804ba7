package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/output"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg", "settings"},
	Short:   "Manage application configuration",
	Long: `View and modify the settings file. Environment variables prefixed with
TIMESCRIBE_ override the file, e.g. TIMESCRIBE_TRACKING_WORK_RESET_AFTER=30m.

Examples:
  timescribe config
  timescribe config get tracking.work_reset_after
  timescribe config set tracking.work_reset_after 30m
  timescribe config set plan.holiday_region de-by
  timescribe config path`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRuntime: runtimeSettings},
	RunE:        runConfigList,
}

// configGetCmd gets configuration values.
var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get configuration value",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.Keys(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runConfigGet,
}

// configSetCmd sets configuration values.
var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set configuration value",
	Long: `Set a configuration value. The value is validated before the file is
written.

Keys and values:
  tracking.work_reset_after DURATION   Close unpinged work after (e.g. 15m, 0 disables)
  tracking.break_reset_after DURATION  Close unpinged breaks after (e.g. 1h)
  plan.fallback_hours HOURS            Planned hours Mon-Fri without a schedule
  plan.week_start WEEKDAY              First day of a week
  plan.timezone ZONE                   IANA zone, empty for local time
  plan.holiday_region REGION           Holiday list to apply from plan.holidays
  scheduler.refresh CRON               Heartbeat check (six fields, with seconds)
  scheduler.recompute CRON             Weekly balance recompute
  server.addr HOST:PORT                Daemon API listen address
  server.allowed_origins LIST          Comma separated CORS origins

Examples:
  timescribe config set tracking.break_reset_after 45m
  timescribe config set plan.week_start sunday`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runConfigSet,
}

// configPathCmd prints the settings file path.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isJSON() {
			return formatter.JSON(map[string]string{"path": configPath()})
		}
		formatter.Println(configPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	values, err := config.Values(configPath())
	if err != nil {
		return err
	}
	if isJSON() {
		return formatter.JSON(values)
	}

	rows := make([]output.TableRow, 0, len(values))
	for _, key := range config.Keys() {
		rows = append(rows, output.TableRow{Columns: []string{key, fmt.Sprint(values[key])}})
	}
	cli().PrintTable([]string{"Key", "Value"}, rows)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := config.Get(configPath(), args[0])
	if err != nil {
		return err
	}
	if isJSON() {
		return formatter.JSON(map[string]any{args[0]: value})
	}
	formatter.Println(fmt.Sprint(value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if _, err := config.Set(configPath(), key, value); err != nil {
		return err
	}
	if isJSON() {
		return formatter.JSON(map[string]string{"status": "updated", "key": key, "value": value})
	}
	cli().Success(fmt.Sprintf("%s = %s", key, value))
	if newDaemon().IsRunning() {
		cli().Muted("Restart the daemon to apply: timescribe daemon stop && timescribe daemon start")
	}
	return nil
}
