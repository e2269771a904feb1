//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is a Hugging Face name or a fastembed model name.
	Model string
	// CacheDir holds downloaded model files. Defaults to ./local_cache.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
	// BatchSize is passed to the ONNX session. Defaults to 64.
	BatchSize    int
	ShowProgress bool
	Logger       *zap.Logger
}

func (c *FastEmbedConfig) applyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = "local_cache"
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// FastEmbedProvider encodes text with a local ONNX model.
type FastEmbedProvider struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	batchSize int
	metrics   *Metrics
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// resolveModel accepts Hugging Face names and fastembed's own model names.
func resolveModel(name string) (fastembed.EmbeddingModel, int, error) {
	dim, known := ModelDimension(name)
	if m, ok := modelMapping[name]; ok {
		return m, dim, nil
	}
	if known {
		return fastembed.EmbeddingModel(name), dim, nil
	}
	return "", 0, fmt.Errorf("%w: unsupported model %q (supported: %s, BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5)",
		ErrInvalidConfig, name, DefaultModel)
}

// NewFastEmbedProvider loads the model, downloading it into CacheDir on first use.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	model, dimension, err := resolveModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &cfg.ShowProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: dimension,
		batchSize: cfg.BatchSize,
		metrics:   NewMetrics(cfg.Logger),
	}, nil
}

// EmbedDocuments encodes texts without any passage prefix so that documents
// and queries share one vector space.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer p.metrics.observe(ctx, p.modelName, "embed_documents", len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vectors, err = p.model.Embed(texts, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery encodes a single query the same way as a document.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	defer p.metrics.observe(ctx, p.modelName, "embed_query", 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vectors, err := p.model.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension for the current model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
