package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Admin manages whole collections.
type Admin struct {
	index  vectorstore.Index
	logger *logging.Logger
}

// NewAdmin returns an Admin for idx.
func NewAdmin(idx vectorstore.Index, logger *logging.Logger) (*Admin, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Admin{index: idx, logger: logger}, nil
}

// List returns the index's collection names.
func (a *Admin) List(ctx context.Context) ([]string, error) {
	ctx, span := tracer().Start(ctx, "pipeline.list")
	defer span.End()

	names, err := a.index.ListCollections(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("list collections: %w", err))
	}
	return names, nil
}

// Exists reports whether name exactly matches an existing collection.
func (a *Admin) Exists(ctx context.Context, name string) (bool, error) {
	return vectorstore.CollectionExists(ctx, a.index, name)
}

// Clear permanently deletes name. It returns false, and deletes nothing, when
// the collection does not exist.
func (a *Admin) Clear(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer().Start(ctx, "pipeline.clear")
	defer span.End()

	span.SetAttributes(attribute.String("collection", name))

	exists, err := a.Exists(ctx, name)
	if err != nil {
		return false, fail(span, fmt.Errorf("check collection %s: %w", name, err))
	}
	if !exists {
		span.SetAttributes(attribute.Bool("deleted", false))
		return false, nil
	}

	if err := a.index.DeleteCollection(ctx, name); err != nil {
		return false, fail(span, fmt.Errorf("delete collection %s: %w", name, err))
	}

	span.SetAttributes(attribute.Bool("deleted", true))
	a.logger.Info(ctx, "deleted collection", zap.String("collection", name))
	return true, nil
}
