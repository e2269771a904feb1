package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Embedder encodes texts into vectors.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery encodes a single search string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a fixed output size and releasable resources.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" or "tei".
	Provider string
	Model    string
	// BaseURL is the TEI server (tei only).
	BaseURL string
	// CacheDir holds downloaded models (fastembed only).
	CacheDir string
	// BatchSize caps the number of texts encoded per call to the model.
	BatchSize int
	// RateLimit is the maximum TEI requests per second; 0 disables limiting.
	RateLimit float64
	// Timeout bounds a single TEI request.
	Timeout      time.Duration
	ShowProgress bool
	Logger       *zap.Logger
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:        cfg.Model,
			CacheDir:     cfg.CacheDir,
			BatchSize:    cfg.BatchSize,
			ShowProgress: cfg.ShowProgress,
			Logger:       cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		svc, err := NewService(Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			RateLimit: cfg.RateLimit,
			Timeout:   cfg.Timeout,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// batches splits texts into consecutive chunks of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
