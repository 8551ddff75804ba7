package daemon

import (
	"log/slog"
	"os"
	"strings"

	"github.com/kyukei-panda/timescribe/internal/config"
	"github.com/kyukei-panda/timescribe/internal/logging"
)

// LogConfig builds the logger configuration of the daemon. The foreground
// daemon of a terminal session logs to stderr; otherwise output goes to the
// rotating log file.
func LogConfig(settings config.LogSettings, toFile, debug bool) logging.Config {
	cfg := logging.Config{
		Level:  logging.ParseLevel(settings.Level),
		JSON:   true,
		Output: os.Stderr,
	}
	if debug {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	if toFile && settings.File != "" {
		cfg.File = settings.File
		cfg.MaxSizeMB = settings.MaxSizeMB
		cfg.MaxBackups = settings.MaxBackups
	}
	return cfg
}

// lastLogError scans the tail of the log file for the most recent error
// line. It explains why a background start failed.
func lastLogError(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	start := max(len(lines)-20, 0)
	for i := len(lines) - 1; i >= start; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed to") {
			return line
		}
	}
	return ""
}
