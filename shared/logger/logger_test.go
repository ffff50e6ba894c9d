package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	cfg.writer = output

	logger, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	return logger, output
}

func decodeLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantLines int
	}{
		{level: "debug", wantLines: 4},
		{level: "info", wantLines: 3},
		{level: "warn", wantLines: 2},
		{level: "error", wantLines: 1},
		{level: "bogus", wantLines: 3}, // unknown levels default to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, output := captureLogger(t, &Config{Level: tt.level, Format: "json"})

			logger.Debug("page fetched")
			logger.Info("batch dispatched")
			logger.Warn("ledger row already taken")
			logger.Error("registry unreachable")

			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			assert.Len(t, lines, tt.wantLines)
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	logger, output := captureLogger(t, &Config{Level: "info", Format: "json"})

	logger.Info("sync job completed",
		slog.String("batch_id", "batch-1"),
		slog.Int64("legal_entity_id", 42),
	)

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "sync job completed", entry["msg"])
	assert.Equal(t, "batch-1", entry["batch_id"])
	assert.Equal(t, float64(42), entry["legal_entity_id"])
	assert.Contains(t, entry, "time")
}

func TestNew_ConsoleFormat(t *testing.T) {
	logger, output := captureLogger(t, &Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.TimeOnly,
	})

	logger.Info("worker started", slog.String("worker_id", "sync-worker-1"))

	// tint prints abbreviated levels.
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "worker started")
	assert.Contains(t, output.String(), "sync-worker-1")
}

func TestNew_UnknownFormatFallsBackToJSON(t *testing.T) {
	logger, output := captureLogger(t, &Config{Level: "info", Format: "logfmt"})

	logger.Info("fallback")

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	assert.Equal(t, "fallback", entry["msg"])
}

func TestNew_SourceLocation(t *testing.T) {
	logger, output := captureLogger(t, &Config{
		Level:        "info",
		Format:       "json",
		EnableSource: true,
	})

	logger.Info("with source")

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	require.Contains(t, entry, "source")
	source := entry["source"].(map[string]interface{})
	assert.Contains(t, source["file"], "logger_test.go")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	// Levels are matched case-sensitively; anything else defaults to info.
	assert.Equal(t, slog.LevelInfo, parseLevel("ERROR"))
}

func TestLogger_With(t *testing.T) {
	logger, output := captureLogger(t, &Config{Level: "info", Format: "json"})

	logger.With(slog.String("service", "worker-service")).
		Info("job acked", slog.String("job_id", "job-1"))

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	assert.Equal(t, "worker-service", entry["service"])
	assert.Equal(t, "job-1", entry["job_id"])
}

func TestLogger_WithAttrs(t *testing.T) {
	logger, output := captureLogger(t, &Config{Level: "info", Format: "json"})

	logger.WithAttrs(
		slog.String("batch_id", "batch-9"),
		slog.String("category", "employee"),
	).Info("chain link completed")

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	assert.Equal(t, "batch-9", entry["batch_id"])
	assert.Equal(t, "employee", entry["category"])
}

func TestLogger_WithGroup(t *testing.T) {
	logger, output := captureLogger(t, &Config{Level: "info", Format: "json"})

	logger.WithGroup("sync").Info("resumed", slog.String("batch_id", "batch-2"))

	entry := decodeLine(t, strings.TrimSpace(output.String()))
	require.Contains(t, entry, "sync")
	group := entry["sync"].(map[string]interface{})
	assert.Equal(t, "batch-2", group["batch_id"])
}
