package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "vecli", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	enabled := func(mutate func(c *Config)) *Config {
		c := NewDefaultConfig()
		c.Enabled = true
		mutate(c)
		return c
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{
			name:   "disabled config skips validation",
			config: &Config{},
		},
		{
			name:   "enabled defaults",
			config: enabled(func(c *Config) {}),
		},
		{
			name:   "missing endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "" }),
			errMsg: "endpoint is required",
		},
		{
			name:   "missing service name",
			config: enabled(func(c *Config) { c.ServiceName = "" }),
			errMsg: "service_name is required",
		},
		{
			name:   "unknown protocol",
			config: enabled(func(c *Config) { c.Protocol = "thrift" }),
			errMsg: "protocol must be",
		},
		{
			name:   "insecure remote endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "otel.example.com:4317" }),
			errMsg: "insecure connections to remote endpoints",
		},
		{
			name: "tls remote endpoint",
			config: enabled(func(c *Config) {
				c.Endpoint = "https://otel.example.com:4318"
				c.Protocol = ProtocolHTTP
				c.Insecure = false
			}),
		},
		{
			name:   "sample rate too high",
			config: enabled(func(c *Config) { c.SampleRate = 1.5 }),
			errMsg: "sample_rate must be between 0 and 1",
		},
		{
			name:   "zero export interval",
			config: enabled(func(c *Config) { c.ExportInterval = 0 }),
			errMsg: "export_interval must be positive",
		},
		{
			name: "zero export interval with metrics off",
			config: enabled(func(c *Config) {
				c.MetricsEnabled = false
				c.ExportInterval = 0
			}),
		},
		{
			name:   "zero shutdown timeout",
			config: enabled(func(c *Config) { c.ShutdownTimeout = 0 }),
			errMsg: "shutdown_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"localhost.example.com:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalEndpoint(tt.endpoint))
		})
	}
}
