package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Inspector previews stored records.
type Inspector struct {
	index  vectorstore.Index
	logger *logging.Logger
}

// NewInspector returns an Inspector reading from idx.
func NewInspector(idx vectorstore.Index, logger *logging.Logger) (*Inspector, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Inspector{index: idx, logger: logger}, nil
}

// Inspect scrolls up to limit records of collection, resolving roles through
// cols. Missing fields read as NotAvailable.
func (i *Inspector) Inspect(ctx context.Context, collection string, limit int, cols snapshot.ColumnMapping) ([]Row, error) {
	ctx, span := tracer().Start(ctx, "pipeline.inspect")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection), attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, fail(span, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit))
	}
	if err := cols.Validate(); err != nil {
		return nil, fail(span, fmt.Errorf("invalid column mapping: %w", err))
	}
	if err := requireCollection(ctx, i.index, collection); err != nil {
		return nil, fail(span, err)
	}

	recs, err := i.index.Scroll(ctx, collection, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("scroll %s: %w", collection, err))
	}

	rows := make([]Row, len(recs))
	for j, rec := range recs {
		rows[j] = rowFrom(cols, rec, NotAvailable)
	}

	i.logger.Debug(ctx, "inspected collection",
		zap.String("collection", collection),
		zap.Int("records", len(rows)),
	)
	return rows, nil
}
