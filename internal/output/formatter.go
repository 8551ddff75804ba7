// Package output provides output formatting for TimeScribe.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Format represents the output format type.
type Format string

const (
	FormatCLI   Format = "cli"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ParseFormat maps a flag value to a Format, defaulting to CLI.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatJSON:
		return FormatJSON
	case FormatPlain:
		return FormatPlain
	default:
		return FormatCLI
	}
}

// ColorMode represents the color output mode.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode maps a flag value to a ColorMode, defaulting to auto.
func ParseColorMode(s string) ColorMode {
	switch ColorMode(s) {
	case ColorAlways:
		return ColorAlways
	case ColorNever:
		return ColorNever
	default:
		return ColorAuto
	}
}

// Formatter handles output formatting.
type Formatter struct {
	Writer    io.Writer
	Format    Format
	ColorMode ColorMode
	// Location is the zone times are printed in. Nil means time.Local.
	Location *time.Location
}

// NewFormatter creates a new formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		Writer:    os.Stdout,
		Format:    FormatCLI,
		ColorMode: ColorAuto,
	}
}

// IsColorEnabled returns true if color output is enabled.
func (f *Formatter) IsColorEnabled() bool {
	if f.Format == FormatPlain {
		return false
	}
	switch f.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		// Auto-detect based on terminal
		if w, ok := f.Writer.(*os.File); ok {
			return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
		}
		return false
	}
}

func (f *Formatter) Print(a ...any)   { fmt.Fprint(f.Writer, a...) }
func (f *Formatter) Println(a ...any) { fmt.Fprintln(f.Writer, a...) }

func (f *Formatter) Printf(format string, a ...any) {
	fmt.Fprintf(f.Writer, format, a...)
}

// JSON writes v indented, the shape every --format json command emits.
func (f *Formatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// Time formats an instant with seconds.
func (f *Formatter) Time(t time.Time) string {
	return t.In(f.loc()).Format("2006-01-02 15:04:05")
}

// Clock formats the time of day only.
func (f *Formatter) Clock(t time.Time) string {
	return t.In(f.loc()).Format("15:04")
}

// Date formats the civil date only.
func (f *Formatter) Date(t time.Time) string {
	return t.In(f.loc()).Format("2006-01-02")
}

// FormatDuration formats an elapsed time. Under an hour seconds are kept
// ("5m 30s"); longer spans print like FormatSeconds.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600 && secs%60 != 0:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return FormatSeconds(secs)
	}
}

// FormatSeconds formats a non-negative number of seconds as hours and
// minutes, e.g. "7h 42m".
func FormatSeconds(s int64) string {
	if s < 0 {
		s = -s
	}
	h, m := s/3600, (s%3600)/60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// FormatBalance formats a signed number of seconds with an explicit sign,
// e.g. "+1h 30m" or "-45m". Zero prints as "0m".
func FormatBalance(s int64) string {
	switch {
	case s > 0:
		return "+" + FormatSeconds(s)
	case s < 0:
		return "-" + FormatSeconds(s)
	default:
		return "0m"
	}
}
