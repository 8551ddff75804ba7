package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture points the global logger at a JSON buffer for the test.
func capture(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, JSON: true, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: slog.LevelInfo}) })
	return &buf
}

// lastRecord decodes the last JSON line of buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"Warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitLevels(t *testing.T) {
	buf := capture(t, slog.LevelWarn)
	assert.False(t, Debug)

	Info("interval added")
	assert.Empty(t, buf.String())

	Warn("ledger reset", KeyCount, 4)
	rec := lastRecord(t, buf)
	assert.Equal(t, "ledger reset", rec["msg"])
	assert.Equal(t, float64(4), rec[KeyCount])

	Error("recompute failed", KeyError, "boom")
	assert.Equal(t, "ERROR", lastRecord(t, buf)["level"])
}

func TestInitDebug(t *testing.T) {
	InitDebug()
	t.Cleanup(func() { Init(Config{Level: slog.LevelInfo}) })
	assert.True(t, Debug)
	assert.True(t, Logger().Enabled(context.Background(), slog.LevelDebug))
}

func TestDebugLog(t *testing.T) {
	buf := capture(t, slog.LevelDebug)
	assert.True(t, Debug)

	DebugLog("database locked, using daemon API", "addr", "http://127.0.0.1:7878")
	rec := lastRecord(t, buf)
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "http://127.0.0.1:7878", rec["addr"])
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: slog.LevelInfo, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: slog.LevelInfo}) })

	Info("scheduler started", KeyState, "working")
	assert.Contains(t, buf.String(), "msg=\"scheduler started\"")
	assert.Contains(t, buf.String(), "state=working")
}

func TestInitRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	Init(Config{Level: slog.LevelInfo, JSON: true, File: path})
	t.Cleanup(func() {
		Close()
		Init(Config{Level: slog.LevelInfo})
	})

	Info("tick", KeyCount, 3)
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tick"`)
	assert.Contains(t, string(data), `"count":3`)
}

func TestReinitClosesFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	Init(Config{Level: slog.LevelInfo, File: first})
	Info("to first")

	var buf bytes.Buffer
	Init(Config{Level: slog.LevelInfo, Output: &buf})
	t.Cleanup(func() { Init(Config{Level: slog.LevelInfo}) })
	Info("to buffer")

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to first")
	assert.NotContains(t, string(data), "to buffer")
	assert.Contains(t, buf.String(), "to buffer")
	assert.NoError(t, Close())
}

// =============================================================================
// Context Tests
// =============================================================================

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.Len(t, id1, 36)
	assert.NotEqual(t, id1, id2)
	assert.Less(t, id1, id2)
}

func TestContextValues(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(nil))
	assert.Empty(t, OperationFromContext(nil))
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, OperationFromContext(context.Background()))

	ctx := WithOperation(WithRequestID(context.Background(), "req-1"), "timescribe import")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "timescribe import", OperationFromContext(ctx))
}

func TestContextLogger(t *testing.T) {
	buf := capture(t, slog.LevelDebug)
	ctx := WithRequestID(context.Background(), "req-42")

	t.Run("request_id", func(t *testing.T) {
		FromContext(ctx).Info("request", KeyMethod, "GET", KeyPath, "/api/status")
		rec := lastRecord(t, buf)
		assert.Equal(t, "req-42", rec[KeyRequestID])
		assert.Equal(t, "/api/status", rec[KeyPath])
		assert.NotContains(t, rec, KeyOperation)
	})

	t.Run("operation", func(t *testing.T) {
		FromContext(WithOperation(ctx, "refresh")).Debug("running refresh")
		rec := lastRecord(t, buf)
		assert.Equal(t, "refresh", rec[KeyOperation])
		assert.Equal(t, "DEBUG", rec["level"])
	})

	t.Run("with", func(t *testing.T) {
		FromContext(ctx).With("component", "daemon").Warn("resuming after sleep")
		rec := lastRecord(t, buf)
		assert.Equal(t, "daemon", rec["component"])
		assert.Equal(t, "WARN", rec["level"])
	})

	t.Run("error", func(t *testing.T) {
		FromContext(ctx).Error("request failed", KeyError, "boom")
		assert.Equal(t, "boom", lastRecord(t, buf)[KeyError])
	})

	t.Run("nil_context", func(t *testing.T) {
		assert.NotPanics(t, func() { FromContext(nil).Info("no context") })
		assert.Equal(t, "no context", lastRecord(t, buf)["msg"])
	})
}
