package errors

import (
	"errors"
	"fmt"
)

// FormatError reports that an import source failed structural verification:
// wrong column count, unknown header or no recognizable date pattern. The
// whole import is aborted before any write.
type FormatError struct {
	Source string // Import source name
	Line   int    // 1-based line of the offending record, 0 when not line bound
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: malformed input at line %d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: malformed input: %s", e.Source, e.Reason)
}

// NewFormatError creates a new FormatError.
func NewFormatError(source string, line int, reason string) *FormatError {
	return &FormatError{Source: source, Line: line, Reason: reason}
}

// IsFormatError checks if an error is a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// RowError is a per-row parse failure. The row is skipped and the batch
// continues.
type RowError struct {
	Row   int    // 1-based data row number
	Field string // Column or field that failed
	Value string
	Cause error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: invalid %s '%s': %v", e.Row, e.Field, e.Value, e.Cause)
}

func (e *RowError) Unwrap() error {
	return e.Cause
}

// NewRowError creates a new RowError.
func NewRowError(row int, field, value string, cause error) *RowError {
	return &RowError{Row: row, Field: field, Value: value, Cause: cause}
}
