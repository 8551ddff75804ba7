package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// timestampSuggestions are offered for --at and positional timestamps.
var timestampSuggestions = []string{
	"now\tthe current time",
	"9am\ttoday at 9:00",
	"10 minutes ago\trelative to now",
	"1 hour ago\trelative to now",
	"yesterday 17:00\ta past day",
}

// dateSuggestions are offered for --on, --from, --to and DATE arguments.
var dateSuggestions = []string{
	"today\tthe current day",
	"yesterday\tthe previous day",
	"this week\tthe first day of this week",
	"last week\tthe first day of last week",
	"this month\tthe first of this month",
	"last month\tthe first of last month",
}

// completeFrom filters described suggestions by the typed prefix.
func completeFrom(suggestions []string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var filtered []string
		for _, s := range suggestions {
			value, _, _ := strings.Cut(s, "\t")
			if strings.HasPrefix(value, toComplete) {
				filtered = append(filtered, s)
			}
		}
		return filtered, cobra.ShellCompDirectiveNoFileComp
	}
}

// withRuntime opens the database for a completion. Completions stay empty
// while the daemon holds it.
func withRuntime(fn func(rt *runtime.Context) []string) []string {
	s, err := config.Load(configPath())
	if err != nil {
		return nil
	}
	opts := runtime.DefaultOptions()
	opts.ConfigPath = configPath()
	opts.Settings = s
	rt, err := runtime.New(opts)
	if err != nil {
		return nil
	}
	defer rt.Close()
	return fn(rt)
}

// completeIntervalIDs completes interval IDs with their start time.
func completeIntervalIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withRuntime(func(rt *runtime.Context) []string {
		ivs, err := rt.Intervals.List()
		if err != nil {
			return nil
		}
		var completions []string
		for _, iv := range ivs {
			if strings.HasPrefix(iv.ID(), toComplete) {
				completions = append(completions, iv.ID()+"\t"+string(iv.Type)+" "+rt.Formatter.Time(iv.StartedAt))
			}
		}
		return completions
	}), cobra.ShellCompDirectiveNoFileComp
}

// completeScheduleIDs completes schedule version IDs.
func completeScheduleIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withRuntime(func(rt *runtime.Context) []string {
		schedules, err := rt.Schedules.List()
		if err != nil {
			return nil
		}
		var completions []string
		for _, s := range schedules {
			if strings.HasPrefix(s.ID(), toComplete) {
				completions = append(completions, s.ID()+"\tfrom "+rt.Formatter.Date(s.ValidFrom))
			}
		}
		return completions
	}), cobra.ShellCompDirectiveNoFileComp
}

// completeAbsenceIDs completes absence IDs.
func completeAbsenceIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withRuntime(func(rt *runtime.Context) []string {
		absences, err := rt.Absences.List()
		if err != nil {
			return nil
		}
		var completions []string
		for _, a := range absences {
			if strings.HasPrefix(a.ID(), toComplete) {
				completions = append(completions, a.ID()+"\t"+string(a.Type)+" "+a.DateString())
			}
		}
		return completions
	}), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	for _, c := range []*cobra.Command{startCmd, breakCmd, stopCmd} {
		c.ValidArgsFunction = completeFrom(timestampSuggestions)
		_ = c.RegisterFlagCompletionFunc("at", completeFrom(timestampSuggestions))
	}
	_ = timestampsAddCmd.RegisterFlagCompletionFunc("start", completeFrom(timestampSuggestions))
	_ = timestampsAddCmd.RegisterFlagCompletionFunc("end", completeFrom(timestampSuggestions))
	_ = balanceCmd.RegisterFlagCompletionFunc("on", completeFrom(dateSuggestions))
	_ = scheduleAddCmd.RegisterFlagCompletionFunc("from", completeFrom(dateSuggestions))
	for _, c := range []*cobra.Command{timestampsListCmd, absenceListCmd} {
		_ = c.RegisterFlagCompletionFunc("from", completeFrom(dateSuggestions))
		_ = c.RegisterFlagCompletionFunc("to", completeFrom(dateSuggestions))
	}

	timestampsDeleteCmd.ValidArgsFunction = completeIntervalIDs
	scheduleDeleteCmd.ValidArgsFunction = completeScheduleIDs
	absenceDeleteCmd.ValidArgsFunction = completeAbsenceIDs
}
