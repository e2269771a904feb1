package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/vecli/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := newLoggerTo(cfg, zapcore.AddSync(buf))
	require.NoError(t, err)
	return logger, buf
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger.Underlying())
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.WarnLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLogger_JSONOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Level = zapcore.DebugLevel
	logger, buf := newBufferLogger(t, cfg)

	ctx := WithRequestID(context.Background(), "req-123")
	logger.Info(ctx, "uploaded batch", zap.Int("points", 100))

	out := buf.String()
	assert.Contains(t, out, `"msg":"uploaded batch"`)
	assert.Contains(t, out, `"points":100`)
	assert.Contains(t, out, `"request.id":"req-123"`)
	assert.Contains(t, out, `"service":"vecli"`)
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, NewDefaultConfig())
	ctx := context.Background()

	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	logger.Warn(ctx, "visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
}

func TestLogger_TraceLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	logger, buf := newBufferLogger(t, cfg)

	logger.Trace(context.Background(), "very verbose")
	assert.Contains(t, buf.String(), "very verbose")
}

func TestLogger_RedactsPerCallFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	logger, buf := newBufferLogger(t, cfg)

	logger.Warn(context.Background(), "connecting",
		zap.String("api_key", "abc123"),
		zap.String("header", "Bearer sk-live-xyz"),
		Secret("qdrant_key", config.Secret("hunter2")),
	)

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "sk-live-xyz")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"qdrant_key":"[REDACTED:7]"`)
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("sync").With(zap.String("collection", "books"))

	child.Info(context.Background(), "recreated collection")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sync", entries[0].LoggerName)
	assert.Equal(t, "books", entries[0].ContextMap()["collection"])
}

func TestLogger_Sync(t *testing.T) {
	logger, _ := newBufferLogger(t, NewDefaultConfig())
	assert.NoError(t, logger.Sync())
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"bad format", func(c *Config) { c.Format = "text" }, "format must be"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }, "invalid redaction pattern"},
		{"long pattern", func(c *Config) { c.Redaction.Patterns = []string{strings.Repeat("a", 201)} }, "too long"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "empty value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
