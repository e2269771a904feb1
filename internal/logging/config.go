package logging

import (
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug.
const TraceLevel = zapcore.DebugLevel - 1

const maxPatternLen = 200

// Config describes how a Logger encodes and filters entries.
type Config struct {
	Level  zapcore.Level
	Format string // "console" or "json"
	Caller bool

	// Stacktrace is the lowest level that carries a stack trace.
	Stacktrace zapcore.Level

	// Fields are attached to every entry.
	Fields    map[string]string
	Redaction RedactionConfig
}

// RedactionConfig lists the field names whose values are masked and the
// patterns masked inside any string value.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns a quiet console config: command output goes to
// stdout, so stderr only carries warnings unless asked for more.
func NewDefaultConfig() *Config {
	return &Config{
		Level:      zapcore.WarnLevel,
		Format:     "console",
		Stacktrace: zapcore.FatalLevel,
		Fields:     map[string]string{"service": "vecli"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"password", "secret", "token", "api_key", "authorization", "bearer", "credential"},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// LevelFromString parses a level name. "trace" maps to TraceLevel.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, err
	}
	return parsed, nil
}

func (c *Config) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}

	for k, v := range c.Fields {
		if k == "" {
			return errors.New("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}

	if !c.Redaction.Enabled {
		return nil
	}
	for _, p := range c.Redaction.Patterns {
		if len(p) > maxPatternLen {
			return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
	}
	return nil
}
