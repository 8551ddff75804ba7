package errors

import (
	"errors"
	"net/http"
	"syscall"
)

// Category groups errors by who can act on them. It decides the HTTP status
// of an API error and the generic hint shown by the CLI.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryUser is input the caller can fix.
	CategoryUser
	// CategoryNotFound is an ID that names no stored record.
	CategoryNotFound
	// CategoryConflict is a request the current timer state rejects.
	CategoryConflict
	// CategoryFormat is an import file rejected as a whole.
	CategoryFormat
	// CategoryUnavailable is a database held by another process.
	CategoryUnavailable
	// CategorySystem is a storage or OS failure.
	CategorySystem
	// CategoryRecoverable is a transient failure worth retrying.
	CategoryRecoverable
)

var categoryNames = [...]string{
	CategoryUnknown:     "unknown",
	CategoryUser:        "user",
	CategoryNotFound:    "not_found",
	CategoryConflict:    "conflict",
	CategoryFormat:      "format",
	CategoryUnavailable: "unavailable",
	CategorySystem:      "system",
	CategoryRecoverable: "recoverable",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryUnknown]
	}
	return categoryNames[c]
}

// HTTPStatus returns the response status of an API error in category c.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryUser:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryFormat:
		return http.StatusUnprocessableEntity
	case CategoryUnavailable, CategoryRecoverable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	notFoundSentinels = []error{ErrIntervalNotFound, ErrScheduleNotFound, ErrAbsenceNotFound}
	conflictSentinels = []error{ErrStateConflict, ErrNoActiveTimer}
	systemSentinels   = []error{ErrDatabaseCorrupted, ErrPermissionDenied}
)

// Classify returns the category of err. Sentinels decide before the
// wrapping type, so InvalidInput(ErrScheduleNotFound, ...) is not found
// rather than bad input.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case IsFormatError(err):
		return CategoryFormat
	case isAny(err, notFoundSentinels):
		return CategoryNotFound
	case isAny(err, conflictSentinels):
		return CategoryConflict
	case errors.Is(err, ErrLockHeld):
		return CategoryUnavailable
	case isAny(err, systemSentinels):
		return CategorySystem
	}

	var rowErr *RowError
	switch {
	case errors.As(err, &rowErr), IsUserError(err):
		return CategoryUser
	case IsRecoverableError(err):
		return CategoryRecoverable
	case IsSystemError(err):
		return CategorySystem
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			// A missing import file.
			return CategoryUser
		case syscall.ENOSPC, syscall.EACCES, syscall.EPERM, syscall.EIO, syscall.EROFS:
			return CategorySystem
		case syscall.EAGAIN, syscall.EINTR, syscall.ETIMEDOUT, syscall.ECONNREFUSED, syscall.ECONNRESET:
			return CategoryRecoverable
		}
	}
	return CategoryUnknown
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
