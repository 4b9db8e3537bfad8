package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/data-forge/internal/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.LogConfig{Level: "debug", Format: "json", Writer: &buf})

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithVariant(ctx, "postcards")
	log.InfoContext(ctx, "item saved", slog.String("id", "pc-001"))

	entry := decode(t, &buf)
	assert.Equal(t, "item saved", entry["msg"])
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "postcards", entry["variant"])
	assert.Equal(t, "pc-001", entry["id"])
	assert.Equal(t, "req-1", logger.RequestIDFromContext(ctx))
}

func TestNewLogger_Sanitizes(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		key   string
		value string
	}{
		{
			name:  "sensitive_key",
			log:   func(l *slog.Logger) { l.Info("configured", slog.String("api_key", "abc123")) },
			key:   "api_key",
			value: "***REDACTED***",
		},
		{
			name:  "inline_secret_in_value",
			log:   func(l *slog.Logger) { l.Info("dialing", slog.String("dsn", "host=db password=hunter2")) },
			key:   "dsn",
			value: "host=db password=***REDACTED***",
		},
		{
			name:  "logger_scoped_attr",
			log:   func(l *slog.Logger) { l.With(slog.String("token", "t0k")).Info("scoped") },
			key:   "token",
			value: "***REDACTED***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(logger.NewLogger(&logger.LogConfig{Format: "json", Writer: &buf}))
			assert.Equal(t, tt.value, decode(t, &buf)[tt.key])
		})
	}
}

func TestNewLogger_Mirror(t *testing.T) {
	var primary, mirror bytes.Buffer
	log := logger.NewLogger(&logger.LogConfig{
		Level:  "info",
		Format: "text",
		Writer: &primary,
		Mirror: &mirror,
	})

	ctx := logger.WithVariant(context.Background(), "products")
	log.With(slog.String("password", "hunter2")).InfoContext(ctx, "seeded", slog.Int("count", 4))
	log.Debug("below level")

	assert.Contains(t, primary.String(), "seeded")
	assert.Contains(t, primary.String(), "variant=products")
	assert.NotContains(t, primary.String(), "hunter2")

	entry := decode(t, &mirror)
	assert.Equal(t, "seeded", entry["msg"])
	assert.Equal(t, "products", entry["variant"])
	assert.Equal(t, float64(4), entry["count"])
	assert.Equal(t, "***REDACTED***", entry["password"])
	assert.NotContains(t, mirror.String(), "below level")
}

func TestMultiHandler_Enabled(t *testing.T) {
	var warnBuf, debugBuf bytes.Buffer
	h := logger.NewMultiHandler(
		slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	log := slog.New(h)

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	log.Info("info only")

	assert.Empty(t, warnBuf.String())
	assert.Contains(t, debugBuf.String(), "info only")
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.LogConfig{Level: "warn", Format: "text", Writer: &buf})

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logger.NewPrettyTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.With(slog.String("service", "catalog")).WithGroup("item").Info("saved", slog.Int("stock", 3))
	log.Debug("dropped")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "service=catalog")
	assert.Contains(t, out, "item.stock=3")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("bogus"))
}
