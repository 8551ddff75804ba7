// Package errors holds the error types of TimeScribe. A UserError carries a
// suggestion the CLI and API show next to the message, a SystemError names
// the storage or OS operation that failed, and a RecoverableError tracks
// badger transaction retries. Import failures are FormatError (the whole
// file) and RowError (one skipped row).
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common conditions.
var (
	ErrNoActiveTimer     = errors.New("no active timer")
	ErrStateConflict     = errors.New("more than one open interval")
	ErrIntervalNotFound  = errors.New("interval not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrAbsenceNotFound   = errors.New("absence not found")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidHours      = errors.New("invalid planned hours")
	ErrInvalidDuration   = errors.New("invalid absence duration")
	ErrInvalidType       = errors.New("invalid type")
	ErrUnknownSource     = errors.New("unknown import source")
	ErrEndBeforeStart    = errors.New("end time must be after start time")
	ErrDatabaseCorrupted = errors.New("database corrupted")
	ErrLockHeld          = errors.New("database locked by another process")
	ErrPermissionDenied  = errors.New("permission denied")
)

// UserError is bad input: a flag, argument, request field or setting.
type UserError struct {
	Message    string
	Suggestion string
	Field      string
	Value      string
	// Cause is usually one of the sentinels above.
	Cause error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Field != "" && e.Value != "" {
		msg = fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// InvalidInput wraps a sentinel as a UserError about one field. The
// suggestion comes from the Suggestions map.
func InvalidInput(sentinel error, field, value string) *UserError {
	return &UserError{
		Message:    sentinel.Error(),
		Field:      field,
		Value:      value,
		Suggestion: Suggestions[sentinel],
		Cause:      sentinel,
	}
}

// SystemError is a failure of the database, the file system or the daemon
// connection.
type SystemError struct {
	Message string
	Cause   error
	Op      string // e.g. "backup", "api"
}

func (e *SystemError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	return e.Message
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// RecoverableError counts the attempts of an operation that may succeed
// when repeated, such as a badger transaction losing a write conflict.
type RecoverableError struct {
	Message    string
	Cause      error
	RetryCount int
	MaxRetries int
	CanRetry   bool
}

func (e *RecoverableError) Error() string {
	if e.RetryCount > 0 {
		return fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.RetryCount, e.MaxRetries)
	}
	return e.Message
}

func (e *RecoverableError) Unwrap() error {
	return e.Cause
}

// NewRecoverableError creates a new RecoverableError.
func NewRecoverableError(message string, cause error, maxRetries int) *RecoverableError {
	return &RecoverableError{
		Message:    message,
		Cause:      cause,
		MaxRetries: maxRetries,
		CanRetry:   true,
	}
}

// IncrementRetry increments the retry count and updates CanRetry.
func (e *RecoverableError) IncrementRetry() {
	e.RetryCount++
	e.CanRetry = e.RetryCount < e.MaxRetries
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsRecoverableError checks if an error is a RecoverableError.
func IsRecoverableError(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is is re-exported from the standard errors package for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
