package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/tui"
)

// Dashboard command flags.
var dashboardFlagRefresh time.Duration

// dashboardCmd represents the dashboard command.
var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash", "tui"},
	Short:   "Open the interactive TUI dashboard",
	Long: `Open an interactive terminal dashboard.

The dashboard shows:
  - The timer state with the live duration of the running interval
  - Today's work, break, plan and balance
  - This week's work, plan and balance

Keyboard Controls:
  w - Start working
  b - Start a break
  s - Stop the timer
  r - Refresh data
  q - Quit dashboard

Examples:
  timescribe dashboard
  timescribe dash --refresh 5s`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationRuntime: runtimeRemote},
	RunE:        runDashboard,
}

func init() {
	dashboardCmd.Flags().DurationVar(&dashboardFlagRefresh, "refresh", time.Second, "Refresh interval")

	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	config := tui.DashboardConfig{
		Location:        formatter.Location,
		RefreshInterval: dashboardFlagRefresh,
	}
	if remote != nil {
		config.Source = tui.RemoteSource{Client: remote}
	} else {
		config.Source = tui.LocalSource{RT: ctx}
	}

	return tui.Run(config)
}
