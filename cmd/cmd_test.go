package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/balance"
	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/storage"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// =============================================================================
// Helpers
// =============================================================================

// testEnv points the CLI at a fresh on-disk database and settings file.
// The database must outlive a single command, so :memory: does not work.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TIMESCRIBE_DATABASE", filepath.Join(dir, "db"))
	t.Setenv("TIMESCRIBE_PLAN_TIMEZONE", "UTC")
	return filepath.Join(dir, "config.yaml")
}

// resetFlags restores every flag to its default between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", configPath, "--color", "never"}, args...))

	err := ExecuteContext(context.Background())
	return out.String(), err
}

// runJSON executes the CLI with --format json and decodes stdout into v.
func runJSON(t *testing.T, configPath string, v any, args ...string) {
	t.Helper()
	out, err := run(t, configPath, "", append([]string{"-f", "json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

// =============================================================================
// Root Tests
// =============================================================================

func TestVersion(t *testing.T) {
	cfg := testEnv(t)
	out, err := run(t, cfg, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "timescribe "+Version)
}

func TestRuntimeMode(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		mode string
	}{
		{rootCmd, runtimeRemote},
		{versionCmd, runtimeNone},
		{completionCmd, runtimeNone},
		{statusCmd, runtimeRemote},
		{startCmd, runtimeRemote},
		{importCmd, runtimeRemote},
		{dashboardCmd, runtimeRemote},
		{configCmd, runtimeSettings},
		{configSetCmd, runtimeSettings},
		{daemonStartCmd, runtimeSettings},
		{daemonStopCmd, runtimeSettings},
		{serveCmd, runtimeSettings},
		{scheduleAddCmd, ""},
		{balanceCmd, ""},
		{resetCmd, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.mode, runtimeMode(tt.cmd), tt.cmd.CommandPath())
	}
}

func TestAtExpression(t *testing.T) {
	assert.Equal(t, "9am", atExpression("9am", []string{"10", "minutes", "ago"}))
	assert.Equal(t, "10 minutes ago", atExpression("", []string{"10", "minutes", "ago"}))
	assert.Equal(t, "", atExpression("", nil))
}

func TestErrorAsJSON(t *testing.T) {
	cfg := testEnv(t)
	out, err := run(t, cfg, "", "-f", "json", "schedule", "delete", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, tserrors.ErrScheduleNotFound)

	var resp output.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Suggestion)
}

// =============================================================================
// Timer Tests
// =============================================================================

func TestTimerFlow(t *testing.T) {
	cfg := testEnv(t)

	var status output.Status
	runJSON(t, cfg, &status, "status")
	assert.Equal(t, tracker.StateStopped, status.State)

	var tr output.TransitionResponse
	runJSON(t, cfg, &tr, "start", "10", "minutes", "ago", "--note", "focus")
	assert.Equal(t, tracker.StateWorking, tr.To)
	require.NotNil(t, tr.Started)
	assert.Equal(t, "focus", tr.Started.Description)

	tr = output.TransitionResponse{}
	runJSON(t, cfg, &tr, "break", "--at", "5 minutes ago")
	assert.Equal(t, tracker.StateWorking, tr.From)
	assert.Equal(t, tracker.StateOnBreak, tr.To)
	assert.Len(t, tr.Closed, 1)

	tr = output.TransitionResponse{}
	runJSON(t, cfg, &tr, "break")
	assert.Equal(t, tracker.StateOnBreak, tr.From)
	assert.Empty(t, tr.Closed)
	require.NotNil(t, tr.Current)

	_, err := run(t, cfg, "", "start", "--at", "20 minutes ago")
	require.Error(t, err)
	assert.True(t, tserrors.IsUserError(err))

	var ping api.PingResponse
	runJSON(t, cfg, &ping, "ping")
	assert.True(t, ping.Running)

	tr = output.TransitionResponse{}
	runJSON(t, cfg, &tr, "stop")
	assert.Equal(t, tracker.StateStopped, tr.To)

	_, err = run(t, cfg, "", "stop")
	assert.ErrorIs(t, err, tserrors.ErrNoActiveTimer)

	var list output.IntervalsResponse
	runJSON(t, cfg, &list, "timestamps", "list")
	assert.Equal(t, 2, list.Count)

	out, err := run(t, cfg, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Today")
}

func TestPingWhenStopped(t *testing.T) {
	cfg := testEnv(t)
	out, err := run(t, cfg, "", "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

// =============================================================================
// Ledger Tests
// =============================================================================

func TestTimestampsAddAndDelete(t *testing.T) {
	cfg := testEnv(t)

	var list output.IntervalsResponse
	out, err := run(t, cfg, "", "-f", "json", "timestamps", "add",
		"--start", "2024-03-04T09:00:00Z", "--duration", "2h", "--note", "review")
	require.NoError(t, err, out)

	runJSON(t, cfg, &list, "timestamps", "list", "--from", "2024-03-04", "--to", "2024-03-04")
	require.Equal(t, 1, list.Count)
	assert.Equal(t, int64(7200), list.TotalSeconds)
	id := list.Intervals[0].ID()

	_, err = run(t, cfg, "", "timestamps", "add", "break",
		"--start", "2024-03-04T10:00:00Z", "--end", "2024-03-04T10:30:00Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), id)

	out, err = run(t, cfg, "n\n", "timestamps", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	_, err = run(t, cfg, "", "timestamps", "delete", id, "--force")
	require.NoError(t, err)
	_, err = run(t, cfg, "", "timestamps", "delete", id, "--force")
	assert.ErrorIs(t, err, tserrors.ErrIntervalNotFound)
}

func TestImportDryRunThenCommit(t *testing.T) {
	cfg := testEnv(t)
	file := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"begin": "2024-03-04T09:00:00Z", "end": "2024-03-04T12:00:00Z", "notes": "planning"},
		{"begin": "2024-03-04T13:00:00Z", "end": "2024-03-04T17:00:00Z", "notes": "coding"}
	]`), 0o644))

	var res importer.Result
	runJSON(t, cfg, &res, "import", "json", file, "--dry-run")
	assert.True(t, res.DryRun)
	assert.Len(t, res.Intervals, 2)

	var list output.IntervalsResponse
	runJSON(t, cfg, &list, "timestamps", "list", "--all")
	assert.Equal(t, 0, list.Count)

	res = importer.Result{}
	runJSON(t, cfg, &res, "import", "json", file)
	assert.False(t, res.DryRun)

	runJSON(t, cfg, &list, "timestamps", "list", "--all")
	assert.Equal(t, 2, list.Count)

	var rows api.BalancesResponse
	runJSON(t, cfg, &rows, "balances")
	assert.NotEmpty(t, rows.Weeks)
}

func TestImportFromStdin(t *testing.T) {
	cfg := testEnv(t)
	out, err := run(t, cfg, `[{"begin": "2024-03-04T09:00:00Z", "end": "2024-03-04T10:00:00Z"}]`,
		"import", "json", "-", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry Run")
}

func TestImportUnknownSource(t *testing.T) {
	cfg := testEnv(t)
	file := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(file, []byte("a,b\n"), 0o644))

	_, err := run(t, cfg, "", "import", "toggl", file)
	assert.ErrorIs(t, err, tserrors.ErrUnknownSource)
}

func TestReset(t *testing.T) {
	cfg := testEnv(t)
	_, err := run(t, cfg, "", "timestamps", "add", "--start", "2024-03-04T09:00:00Z", "--duration", "1h")
	require.NoError(t, err)

	out, err := run(t, cfg, "no\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	var resp map[string]any
	runJSON(t, cfg, &resp, "reset", "--force")
	assert.Equal(t, float64(1), resp["deleted"])
	assert.NotEmpty(t, resp["backup"])

	var list output.IntervalsResponse
	runJSON(t, cfg, &list, "timestamps", "list", "--all")
	assert.Equal(t, 0, list.Count)
}

// =============================================================================
// Plan Tests
// =============================================================================

func TestScheduleCommands(t *testing.T) {
	cfg := testEnv(t)

	var dto api.ScheduleDTO
	runJSON(t, cfg, &dto, "schedule", "add", "8,8,8,8,6,0,0", "--from", "2024-01-01")
	assert.Equal(t, "2024-01-01", dto.ValidFrom)
	assert.Equal(t, "38", dto.WeeklyHours)

	var list []api.ScheduleDTO
	runJSON(t, cfg, &list, "schedule", "list")
	require.Len(t, list, 1)

	var week balance.Summary
	runJSON(t, cfg, &week, "balance", "week", "--on", "2024-03-06")
	assert.Equal(t, int64(38*3600), week.PlanSeconds)

	_, err := run(t, cfg, "", "schedule", "delete", dto.ID)
	require.NoError(t, err)

	_, err = run(t, cfg, "", "schedule", "add", "8,8,8,8,8,0,25")
	assert.ErrorIs(t, err, tserrors.ErrInvalidHours)
}

func TestAbsenceCommands(t *testing.T) {
	cfg := testEnv(t)

	var dto api.AbsenceDTO
	runJSON(t, cfg, &dto, "absence", "add", "vacation", "2024-03-04", "--duration", "half", "--note", "dentist")
	assert.Equal(t, "2024-03-04", dto.Date)
	assert.Equal(t, "0.5", dto.Duration)

	var day balance.Summary
	runJSON(t, cfg, &day, "balance", "day", "--on", "2024-03-04")
	assert.Equal(t, int64(4*3600), day.PlanSeconds)

	var list []api.AbsenceDTO
	runJSON(t, cfg, &list, "absence", "list", "--from", "2024-03-01", "--to", "2024-03-31")
	require.Len(t, list, 1)

	_, err := run(t, cfg, "", "absence", "add", "holiday", "2024-03-05")
	assert.ErrorIs(t, err, tserrors.ErrInvalidType)

	_, err = run(t, cfg, "", "absence", "delete", dto.ID)
	require.NoError(t, err)
	_, err = run(t, cfg, "", "absence", "delete", dto.ID)
	assert.ErrorIs(t, err, tserrors.ErrAbsenceNotFound)
}

func TestBalancePeriods(t *testing.T) {
	cfg := testEnv(t)

	for _, tt := range []struct {
		args   []string
		period string
		plan   int64
	}{
		{[]string{"balance", "day", "--on", "2024-03-04"}, balance.PeriodDay, 8 * 3600},
		{[]string{"balance", "--on", "2024-03-06"}, balance.PeriodWeek, 40 * 3600},
		{[]string{"balance", "month", "--on", "2024-03"}, balance.PeriodMonth, 21 * 8 * 3600},
	} {
		var s balance.Summary
		runJSON(t, cfg, &s, tt.args...)
		assert.Equal(t, tt.period, s.Period, tt.args)
		assert.Equal(t, tt.plan, s.PlanSeconds, tt.args)
	}

	_, err := run(t, cfg, "", "balance", "fortnight")
	require.Error(t, err)
	assert.True(t, tserrors.IsUserError(err))
}

func TestRecomputeAndToday(t *testing.T) {
	cfg := testEnv(t)

	var res balance.RecomputeResult
	runJSON(t, cfg, &res, "recompute")
	assert.Equal(t, 0, res.Weeks)

	out, err := run(t, cfg, "", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "No intervals recorded")
}

// =============================================================================
// Settings and Maintenance Tests
// =============================================================================

func TestConfigCommands(t *testing.T) {
	cfg := testEnv(t)

	_, err := run(t, cfg, "", "config", "set", "plan.week_start", "sunday")
	require.NoError(t, err)

	out, err := run(t, cfg, "", "config", "get", "plan.week_start")
	require.NoError(t, err)
	assert.Equal(t, "sunday", strings.TrimSpace(out))

	out, err = run(t, cfg, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, cfg, strings.TrimSpace(out))

	var values map[string]any
	runJSON(t, cfg, &values, "config")
	assert.Equal(t, "sunday", values["plan.week_start"])

	_, err = run(t, cfg, "", "config", "set", "plan.week_start", "blursday")
	assert.Error(t, err)
	_, err = run(t, cfg, "", "config", "get", "nope")
	assert.Error(t, err)
}

func TestDoctor(t *testing.T) {
	cfg := testEnv(t)

	var status storage.IntegrityStatus
	runJSON(t, cfg, &status, "doctor")
	assert.True(t, status.Healthy)
}

func TestCompletion(t *testing.T) {
	cfg := testEnv(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := run(t, cfg, "", "completion", shell)
		require.NoError(t, err, shell)
		assert.Contains(t, out, "timescribe", shell)
	}
	_, err := run(t, cfg, "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestCompleteFrom(t *testing.T) {
	fn := completeFrom(dateSuggestions)
	got, directive := fn(nil, nil, "last")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	assert.Equal(t, []string{"last week\tthe first day of last week", "last month\tthe first of last month"}, got)
}
