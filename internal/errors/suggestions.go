package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	// User input errors
	ErrNoActiveTimer:    "Use 'timescribe start' to begin a work interval.",
	ErrIntervalNotFound: "Use 'timescribe timestamps list' to see recorded intervals.",
	ErrScheduleNotFound: "Use 'timescribe schedule list' to see schedule versions.",
	ErrAbsenceNotFound:  "Use 'timescribe absence list' to see recorded absences.",
	ErrInvalidTimestamp: "Try formats like '2 hours ago', 'yesterday at 3pm', or '9am'.",
	ErrInvalidDate:      "Use a date like 2024-03-04, or 'today', 'last monday'.",
	ErrInvalidHours:     "Give seven values Monday first, each between 0 and 24, e.g. 8,8,8,8,8,0,0.",
	ErrInvalidDuration:  "An absence covers a fraction of a day between 0 (exclusive) and 1, e.g. 0.5.",
	ErrInvalidType:      "Interval types are 'work' and 'break'; absence types are 'vacation' and 'sick'.",
	ErrUnknownSource:    "Supported import sources are 'clockify' and 'json'.",
	ErrEndBeforeStart:   "Check your timestamps - end time must be after start time.",

	// System errors
	ErrDatabaseCorrupted: "Run 'timescribe doctor' for details, then restore a backup from the data directory.",
	ErrLockHeld:          "The daemon holds the database. Use the HTTP API or 'timescribe daemon stop' first.",
	ErrPermissionDenied:  "Check file permissions in your data directory (~/.local/share/timescribe/).",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	// Check if it's a UserError with a suggestion
	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}

	if IsFormatError(err) {
		return "Check that the file is an unmodified export of the chosen source."
	}
	return ""
}

// GetCategorySuggestion returns a generic suggestion for the category of err.
func GetCategorySuggestion(err error) string {
	switch Classify(err) {
	case CategoryUser:
		return "Check your input and try again. Use --help for usage information."
	case CategoryUnavailable:
		return "Another timescribe process holds the database. Wait for it, or stop the daemon."
	case CategorySystem:
		return "This is a system error. Check system resources and try again."
	case CategoryRecoverable:
		return "This error may resolve itself. Run the command again."
	}
	return ""
}

// CommandExamples provides example commands for common errors.
var CommandExamples = map[error][]string{
	ErrNoActiveTimer: {
		"timescribe start",
		"timescribe start --at '10 minutes ago'",
	},
	ErrInvalidTimestamp: {
		"timescribe start --at 9am",
		"timescribe stop --at '5 minutes ago'",
	},
	ErrInvalidHours: {
		"timescribe schedule add 8",
		"timescribe schedule add 8,8,8,8,6,0,0 --from 2024-01-01",
	},
	ErrInvalidDuration: {
		"timescribe absence add vacation 2024-03-04 --duration half",
		"timescribe timestamps add --start 9am --duration 2h",
	},
}

// GetExamples returns example commands for an error.
func GetExamples(err error) []string {
	for knownErr, examples := range CommandExamples {
		if errors.Is(err, knownErr) {
			return examples
		}
	}
	return nil
}
