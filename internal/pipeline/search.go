package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/vecli/internal/embeddings"
	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// UniqueOverfetch is the candidate multiplier used when results must have
// distinct titles.
const UniqueOverfetch = 10

// SearchRequest is a similarity query against one collection.
type SearchRequest struct {
	Query      string
	Collection string
	Limit      int
	// Unique keeps only the best-scoring hit per title.
	Unique  bool
	Columns snapshot.ColumnMapping
}

// SearchResult is one hit. Missing payload fields read as NotAvailable.
type SearchResult struct {
	Score    float32
	Title    string
	Category string
	Text     string
}

// Searcher runs similarity queries.
type Searcher struct {
	embedder embeddings.Embedder
	index    vectorstore.Index
	logger   *logging.Logger
	records  metric.Int64Counter
}

// NewSearcher returns a Searcher. The embedder must be the model the
// collection was built with; nothing checks this.
func NewSearcher(embedder embeddings.Embedder, idx vectorstore.Index, logger *logging.Logger) (*Searcher, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Searcher{
		embedder: embedder,
		index:    idx,
		logger:   logger,
		records:  newRecordCounter(logger),
	}, nil
}

// Search embeds req.Query and returns at most req.Limit hits, best first.
//
// With req.Unique set it fetches Limit*UniqueOverfetch candidates and keeps
// the first hit of each title; fewer than Limit results come back when the
// candidates hold fewer distinct titles. A blank query returns ErrEmptyQuery
// and a missing collection returns vectorstore.ErrCollectionNotFound, both
// before anything is embedded.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	ctx, span := tracer().Start(ctx, "pipeline.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", req.Collection),
		attribute.Int("limit", req.Limit),
		attribute.Bool("unique", req.Unique),
	)

	if strings.TrimSpace(req.Query) == "" {
		return nil, fail(span, ErrEmptyQuery)
	}
	if req.Limit <= 0 {
		return nil, fail(span, fmt.Errorf("%w: got %d", ErrInvalidLimit, req.Limit))
	}
	if err := req.Columns.Validate(); err != nil {
		return nil, fail(span, fmt.Errorf("invalid column mapping: %w", err))
	}
	if err := requireCollection(ctx, s.index, req.Collection); err != nil {
		return nil, fail(span, err)
	}

	vector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fail(span, fmt.Errorf("embed query: %w", err))
	}

	fetch := req.Limit
	if req.Unique {
		fetch = req.Limit * UniqueOverfetch
	}

	hits, err := s.index.Search(ctx, req.Collection, vector, fetch)
	if err != nil {
		return nil, fail(span, fmt.Errorf("search %s: %w", req.Collection, err))
	}

	candidates := make([]SearchResult, len(hits))
	for i, h := range hits {
		row := rowFrom(req.Columns, h.Record, NotAvailable)
		candidates[i] = SearchResult{
			Score:    h.Score,
			Title:    row.Title,
			Category: row.Category,
			Text:     row.Text,
		}
	}

	results := Dedupe(candidates, req.Limit, req.Unique)
	countRecords(ctx, s.records, "search", len(results))
	span.SetAttributes(attribute.Int("candidates", len(candidates)), attribute.Int("results", len(results)))

	s.logger.Debug(ctx, "search completed",
		zap.String("collection", req.Collection),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Dedupe truncates candidates to limit. With unique set, later hits whose
// title was already kept are skipped first. Candidate order is preserved.
func Dedupe(candidates []SearchResult, limit int, unique bool) []SearchResult {
	if limit <= 0 {
		return nil
	}

	out := make([]SearchResult, 0, min(limit, len(candidates)))
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if unique {
			if _, dup := seen[c.Title]; dup {
				continue
			}
			seen[c.Title] = struct{}{}
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}
