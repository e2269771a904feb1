// Package config provides configuration loading for vecli.
//
// Configuration is assembled from a YAML file, VECLI_* environment variables and
// defaults. Command-line flags are applied on top by cmd/vecli.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete vecli configuration.
type Config struct {
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Snapshot   SnapshotConfig   `koanf:"snapshot"`
	Collection CollectionConfig `koanf:"collection"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// QdrantConfig holds the remote vector index connection settings.
type QdrantConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"` // gRPC port, not the 6333 REST port
	UseTLS        bool          `koanf:"use_tls"`
	APIKey        Secret        `koanf:"api_key"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"` // 0 disables retries
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Provider is "qdrant" (remote service) or "chromem" (embedded, on disk).
	Provider string `koanf:"provider"`
	// Path is the chromem database directory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	Provider  string        `koanf:"provider"` // "fastembed" or "tei"
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	CacheDir  string        `koanf:"cache_dir"`
	BatchSize int           `koanf:"batch_size"`
	RateLimit float64       `koanf:"rate_limit"` // TEI requests per second, 0 = unlimited
	Timeout   time.Duration `koanf:"timeout"`
}

// SnapshotConfig holds local snapshot settings.
type SnapshotConfig struct {
	Dir string `koanf:"dir"`
}

// CollectionConfig holds the default collection name used when none is given.
type CollectionConfig struct {
	Name string `koanf:"name"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OTLP export settings. Export is off unless Enabled.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"`
	Protocol       string        `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure       bool          `koanf:"insecure"`
	TLSSkipVerify  bool          `koanf:"tls_skip_verify"`
	SampleRate     float64       `koanf:"sample_rate"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// MetricsConfig controls the Prometheus text file written when a command exits.
type MetricsConfig struct {
	// Textfile is the output path, typically read by node_exporter's textfile
	// collector. Empty disables the dump.
	Textfile string `koanf:"textfile"`
}

// Default values.
const (
	DefaultQdrantHost      = "localhost"
	DefaultQdrantPort      = 6334
	DefaultQdrantTimeout   = 60 * time.Second
	DefaultIndexProvider   = "qdrant"
	DefaultChromemPath     = "~/.config/vecli/index"
	DefaultEmbedProvider   = "fastembed"
	DefaultEmbedModel      = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultTEIBaseURL      = "http://localhost:8080"
	DefaultEmbedBatchSize  = 64
	DefaultEmbedTimeout    = 60 * time.Second
	DefaultSnapshotDir     = "outputs"
	DefaultCollectionName  = "book_summaries"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "console"
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultOTLPProtocol    = "grpc"
	DefaultExportInterval  = 15 * time.Second
	maxCollectionNameBytes = 255
)

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Qdrant port is not between 1 and 65535
//   - a timeout or retry count is negative
//   - the index or embedding provider is unknown
//   - the embedding batch size is not positive
//   - the default collection name is empty or too long
//   - the telemetry protocol or sample rate is invalid
func (c *Config) Validate() error {
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
	}
	if c.Qdrant.Timeout < 0 {
		return errors.New("qdrant timeout cannot be negative")
	}
	if c.Qdrant.RetryAttempts < 0 {
		return fmt.Errorf("invalid qdrant retry attempts: %d", c.Qdrant.RetryAttempts)
	}

	switch c.Index.Provider {
	case "qdrant":
		if c.Qdrant.Host == "" {
			return errors.New("qdrant host is required")
		}
	case "chromem":
		if c.Index.Path == "" {
			return errors.New("index path is required for chromem provider")
		}
	default:
		return fmt.Errorf("unknown index provider %q (must be qdrant or chromem)", c.Index.Provider)
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			return errors.New("embeddings base_url is required for tei provider")
		}
	default:
		return fmt.Errorf("unknown embeddings provider %q (must be fastembed or tei)", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("invalid embeddings batch size: %d (must be > 0)", c.Embeddings.BatchSize)
	}
	if c.Embeddings.RateLimit < 0 {
		return errors.New("embeddings rate limit cannot be negative")
	}

	if c.Collection.Name == "" {
		return errors.New("collection name is required")
	}
	if len(c.Collection.Name) > maxCollectionNameBytes {
		return fmt.Errorf("collection name exceeds %d bytes", maxCollectionNameBytes)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging format must be 'console' or 'json', got %q", c.Logging.Format)
	}

	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
		return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Qdrant defaults
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = DefaultQdrantHost
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = DefaultQdrantPort
	}
	if cfg.Qdrant.Timeout == 0 {
		cfg.Qdrant.Timeout = DefaultQdrantTimeout
	}

	// Index defaults (qdrant is the reference backend)
	if cfg.Index.Provider == "" {
		cfg.Index.Provider = DefaultIndexProvider
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = DefaultChromemPath
	}

	// Embeddings defaults
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = DefaultEmbedProvider
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = DefaultEmbedModel
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = DefaultTEIBaseURL
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = DefaultEmbedBatchSize
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = DefaultEmbedTimeout
	}

	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = DefaultSnapshotDir
	}
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = DefaultCollectionName
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	// Telemetry defaults; a fresh config samples everything it exports
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = DefaultOTLPEndpoint
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = DefaultOTLPProtocol
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = DefaultExportInterval
	}
}
