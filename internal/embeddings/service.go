package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrEmptyInput      = errors.New("empty or nil input texts")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// DefaultTEITimeout bounds a TEI request when Config.Timeout is unset.
const DefaultTEITimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 4 << 10

// Config configures a Service.
type Config struct {
	// BaseURL is the TEI server root; /embed is appended.
	BaseURL string
	Model   string
	// Dimension overrides the size guessed from the model name.
	Dimension int
	// BatchSize splits EmbedDocuments into several requests; 0 sends one.
	BatchSize int
	// RateLimit is requests per second; 0 means unlimited.
	RateLimit float64
	Timeout   time.Duration
	Logger    *zap.Logger
}

func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Service is a Provider backed by a Text Embeddings Inference server.
type Service struct {
	endpoint  string
	model     string
	batchSize int
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	metrics   *Metrics
}

// NewService returns a TEI provider. No request is made until the first
// embedding call.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTEITimeout
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	dim := config.Dimension
	if dim == 0 {
		dim = guessDimension(config.Model)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		endpoint:  strings.TrimRight(config.BaseURL, "/") + "/embed",
		model:     config.Model,
		batchSize: config.BatchSize,
		dimension: dim,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedDocuments encodes texts, one request per batch, preserving order.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) (out [][]float32, err error) {
	defer s.metrics.observe(ctx, s.model, "embed_documents", len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out = make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, s.batchSize) {
		vectors, err := s.post(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(batch))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery encodes a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	defer s.metrics.observe(ctx, s.model, "embed_query", 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := s.post(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// post sends inputs, a string or a []string, to /embed. TEI truncates
// over-long inputs instead of rejecting them.
func (s *Service) post(ctx context.Context, inputs any) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(map[string]any{"inputs": inputs, "truncate": true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// Dimension returns the configured or model-derived embedding size.
func (s *Service) Dimension() int { return s.dimension }

// Close is a no-op; the HTTP client holds no per-service resources.
func (s *Service) Close() error { return nil }
