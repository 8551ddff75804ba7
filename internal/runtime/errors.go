package runtime

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
)

// ErrDiskFull is returned when the ledger cannot be written.
var ErrDiskFull = errors.New("disk full: unable to write to database")

// DiskFullError represents a disk full condition with additional context.
type DiskFullError struct {
	Op      string // e.g. "import", "start"
	Path    string
	wrapped error
}

func (e *DiskFullError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("disk full during %s on %s: %v", e.Op, e.Path, e.wrapped)
	}
	return fmt.Sprintf("disk full during %s: %v", e.Op, e.wrapped)
}

func (e *DiskFullError) Unwrap() error {
	return ErrDiskFull
}

// IsDiskFullError checks if an error indicates a disk full condition.
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDiskFull) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ENOSPC {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"no space left on device", "disk full", "enospc"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WrapDiskFullError wraps err as a DiskFullError if it indicates disk full.
// Other errors are returned unchanged.
func WrapDiskFullError(err error, op, path string) error {
	if err == nil || !IsDiskFullError(err) {
		return err
	}
	return &DiskFullError{Op: op, Path: path, wrapped: err}
}

// hinter is implemented by errors that carry their own suggestion, such as
// errors relayed from the daemon.
type hinter interface {
	error
	Hint() string
}

// Describe returns the message and suggestion shown for err.
func Describe(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var h hinter
	if errors.As(err, &h) && h.Hint() != "" {
		return err.Error(), h.Hint()
	}
	if IsDiskFullError(err) {
		return err.Error(), "Free up disk space and try again. The ledger was not modified."
	}
	suggestion := tserrors.GetSuggestion(err)
	if suggestion == "" {
		suggestion = tserrors.GetCategorySuggestion(err)
	}
	return err.Error(), suggestion
}

// FormatError formats an error with its suggestion on a second line,
// followed by example commands when some are known.
func FormatError(err error) string {
	msg, suggestion := Describe(err)
	if suggestion != "" {
		msg += "\n" + suggestion
	}
	if examples := tserrors.GetExamples(err); len(examples) > 0 {
		msg += "\n\nExamples:\n  " + strings.Join(examples, "\n  ")
	}
	return msg
}
