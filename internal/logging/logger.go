// Package logging provides structured logging for TimeScribe.
// It wraps slog with a swappable global logger. The daemon writes to a
// size-rotated file through lumberjack.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	loggerMu      sync.RWMutex

	// closer releases the rotating file of the previous Init, if any.
	closer io.Closer

	// Debug indicates if debug mode is enabled.
	Debug bool
)

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	JSON      bool
	Output    io.Writer // default: stderr
	AddSource bool

	// File, when set, sends output to a rotating log file instead of Output.
	File       string
	MaxSizeMB  int // default 10
	MaxBackups int // default 3
	MaxAgeDays int // default 28
}

// DebugConfig is the configuration of --debug: JSON with source lines.
func DebugConfig() Config {
	return Config{Level: slog.LevelDebug, JSON: true, Output: os.Stderr, AddSource: true}
}

// ParseLevel parses a log.level setting. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the global logger. A rotating file opened by an earlier
// Init is closed first.
func Init(cfg Config) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if closer != nil {
		closer.Close()
		closer = nil
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.File != "" {
		rotating := newRotatingFile(cfg)
		output, closer = rotating, rotating
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler = slog.NewTextHandler(output, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	Debug = cfg.Level <= slog.LevelDebug
}

func newRotatingFile(cfg Config) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(cfg.File), 0o755)
	l := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	if l.MaxSize == 0 {
		l.MaxSize = 10
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 3
	}
	if l.MaxAge == 0 {
		l.MaxAge = 28
	}
	return l
}

// Close releases the rotating log file, if one is open.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// InitDebug initializes the logger in debug mode.
func InitDebug() {
	Init(DebugConfig())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func DebugLog(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// Common structured logging fields.
const (
	KeyRequestID = "request_id"
	KeyOperation = "op"
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyInterval  = "interval"
	KeyType      = "type"
	KeySource    = "source"
	KeyState     = "state"
	KeyWeek      = "week"
	KeyRow       = "row"
	KeyStatus    = "status"
	KeyCount     = "count"
	KeyMethod    = "method"
	KeyPath      = "path"
)
