// Package tui provides the terminal dashboard of TimeScribe.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette for the dashboard.
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
	ColorWarning = lipgloss.Color("#F59E0B") // Yellow
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorActive  = lipgloss.Color("#3B82F6") // Blue
	ColorBorder  = lipgloss.Color("#4B5563") // Dark gray
)

// Text styles.
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(10)

	StyleDuration = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorActive)

	StyleNote = lipgloss.NewStyle().
			Italic(true).
			Foreground(ColorMuted)

	// StyleWorking marks a running WORK interval.
	StyleWorking = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	// StyleOnBreak marks a running BREAK interval.
	StyleOnBreak = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWarning)

	StyleStopped = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StylePositive = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleNegative = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)

	StyleHelpKey = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	StyleHelpDesc = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Box styles.
var (
	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2)

	StyleWorkingBox = StyleBox.BorderForeground(ColorSuccess)

	StyleBreakBox = StyleBox.BorderForeground(ColorWarning)
)

// ProgressBar renders a bar filled to percentage, clamped to 0..100.
func ProgressBar(percentage float64, width int) string {
	percentage = min(max(percentage, 0), 100)
	if width < 1 {
		width = 1
	}
	filled := int(float64(width) * percentage / 100)

	filledStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	emptyStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))
}

// balanceStyle colors a balance by its sign.
func balanceStyle(seconds int64) lipgloss.Style {
	if seconds < 0 {
		return StyleNegative
	}
	return StylePositive
}
