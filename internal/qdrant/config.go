package qdrant

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
)

const (
	defaultHost           = "localhost"
	defaultGRPCPort       = 6334
	defaultMaxMessageSize = 50 << 20
	defaultDialTimeout    = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// ClientConfig configures the Qdrant gRPC client. Zero fields take the
// defaults of DefaultClientConfig.
type ClientConfig struct {
	Host string
	// Port is the gRPC port, 6334 on a stock server. The REST port 6333 will
	// not work.
	Port   int
	UseTLS bool
	APIKey string

	// MaxMessageSize caps both directions of a call. 50MB fits an upsert
	// batch of 1024-d vectors.
	MaxMessageSize int

	// DialTimeout bounds the health check run by NewGRPCClient.
	DialTimeout time.Duration

	// RequestTimeout bounds each operation, retries included.
	RequestTimeout time.Duration

	// RetryAttempts is how many times a transient failure is retried.
	RetryAttempts int
}

// DefaultClientConfig returns the settings for a local, unauthenticated Qdrant.
func DefaultClientConfig() *ClientConfig {
	c := &ClientConfig{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero fields.
func (c *ClientConfig) ApplyDefaults() {
	setDefault(&c.Host, defaultHost)
	setDefault(&c.Port, defaultGRPCPort)
	setDefault(&c.MaxMessageSize, defaultMaxMessageSize)
	setDefault(&c.DialTimeout, defaultDialTimeout)
	setDefault(&c.RequestTimeout, defaultRequestTimeout)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate reports the first invalid field, wrapped in
// vectorstore.ErrInvalidConfig.
func (c *ClientConfig) Validate() error {
	var problem string
	switch {
	case c.Host == "":
		problem = "host is required"
	case c.Port < 1 || c.Port > 65535:
		problem = fmt.Sprintf("invalid port: %d (must be 1-65535)", c.Port)
	case c.MaxMessageSize <= 0:
		problem = fmt.Sprintf("invalid max message size: %d", c.MaxMessageSize)
	case c.RetryAttempts < 0:
		problem = fmt.Sprintf("invalid retry attempts: %d", c.RetryAttempts)
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", vectorstore.ErrInvalidConfig, problem)
}
