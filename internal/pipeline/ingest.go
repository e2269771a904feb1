package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/vecli/internal/embeddings"
	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// IngestRequest names the input table, the column for each role and the
// directory the snapshot is written to.
type IngestRequest struct {
	InputPath string
	Columns   snapshot.ColumnMapping
	OutputDir string
}

// IngestResult describes a written snapshot.
type IngestResult struct {
	Path        string
	RowsLoaded  int
	RowsDropped int
	Records     int
	Dimension   int
}

// EmbedderFunc opens an embedder on demand.
type EmbedderFunc func(ctx context.Context) (embeddings.Embedder, error)

// Ingestor turns a table into a snapshot.
type Ingestor struct {
	openEmbedder EmbedderFunc
	logger       *logging.Logger
	records      metric.Int64Counter
}

// NewIngestor returns an Ingestor using embedder. A nil logger discards output.
func NewIngestor(embedder embeddings.Embedder, logger *logging.Logger) (*Ingestor, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	return NewLazyIngestor(func(context.Context) (embeddings.Embedder, error) {
		return embedder, nil
	}, logger)
}

// NewLazyIngestor returns an Ingestor that calls open only once the input
// table has passed validation and holds at least one row with text. Opening
// a local model may download it, so a bad table never gets that far.
func NewLazyIngestor(open EmbedderFunc, logger *logging.Logger) (*Ingestor, error) {
	if open == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{
		openEmbedder: open,
		logger:       logger,
		records:      newRecordCounter(logger),
	}, nil
}

// Ingest reads req.InputPath, drops rows whose text cell is blank, embeds the
// rest in order and saves the snapshot under req.OutputDir.
//
// Blank means empty or whitespace only, so a cell of spaces is dropped too,
// not just a missing value. Rows with a blank title or category are kept.
//
// A missing column fails with *table.MissingColumnError before the embedder
// is opened.
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := tracer().Start(ctx, "pipeline.ingest")
	defer span.End()

	span.SetAttributes(
		attribute.String("input", req.InputPath),
		attribute.String("column.text", req.Columns.Text),
	)

	if err := req.Columns.Validate(); err != nil {
		return nil, fail(span, fmt.Errorf("invalid column mapping: %w", err))
	}

	t, err := table.Read(req.InputPath)
	if err != nil {
		return nil, fail(span, err)
	}

	cells, err := t.Select(req.Columns.Text, req.Columns.Title, req.Columns.Category)
	if err != nil {
		return nil, fail(span, err)
	}

	i.logger.Info(ctx, "loaded table",
		zap.String("input", req.InputPath),
		zap.Int("rows", len(cells)),
	)

	records := make([]snapshot.Record, 0, len(cells))
	texts := make([]string, 0, len(cells))
	for _, row := range cells {
		if strings.TrimSpace(row[0]) == "" {
			continue
		}
		texts = append(texts, row[0])
		records = append(records, snapshot.Record{Text: row[0], Title: row[1], Category: row[2]})
	}
	dropped := len(cells) - len(records)
	if dropped > 0 {
		i.logger.Debug(ctx, "dropped rows with empty text", zap.Int("rows", dropped))
	}

	if len(texts) > 0 {
		embedder, err := i.openEmbedder(ctx)
		if err != nil {
			return nil, fail(span, err)
		}
		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fail(span, fmt.Errorf("embed %d texts: %w", len(texts), err))
		}
		if len(vectors) != len(texts) {
			return nil, fail(span, fmt.Errorf("%w: got %d vectors for %d texts",
				embeddings.ErrEmbeddingFailed, len(vectors), len(texts)))
		}
		for j := range records {
			records[j].Embedding = vectors[j]
		}
	} else {
		i.logger.Warn(ctx, "no rows with text; writing empty snapshot", zap.String("input", req.InputPath))
	}

	snap := snapshot.New(req.Columns, records)
	path, err := snap.Save(req.OutputDir)
	if err != nil {
		return nil, fail(span, err)
	}

	dim, _ := snap.Dimension()
	countRecords(ctx, i.records, "ingest", snap.Len())
	span.SetAttributes(
		attribute.Int("records", snap.Len()),
		attribute.Int("dimension", dim),
	)

	i.logger.Info(ctx, "saved embeddings",
		zap.String("path", path),
		zap.Int("records", snap.Len()),
		zap.Int("dimension", dim),
	)

	return &IngestResult{
		Path:        path,
		RowsLoaded:  len(cells),
		RowsDropped: dropped,
		Records:     snap.Len(),
		Dimension:   dim,
	}, nil
}
