package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultSyncBatchSize is the number of points sent per upsert.
const DefaultSyncBatchSize = 100

// SyncResult describes a completed sync.
type SyncResult struct {
	Collection string
	Points     int
	Batches    int
	Dimension  int
}

// Syncer uploads snapshots to an index.
type Syncer struct {
	index     vectorstore.Index
	logger    *logging.Logger
	batchSize int
	records   metric.Int64Counter
}

// NewSyncer returns a Syncer that upserts DefaultSyncBatchSize points per call.
func NewSyncer(idx vectorstore.Index, logger *logging.Logger) (*Syncer, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		index:     idx,
		logger:    logger,
		batchSize: DefaultSyncBatchSize,
		records:   newRecordCounter(logger),
	}, nil
}

// Sync drops and recreates collection sized to the snapshot's embeddings, then
// upserts every record with id equal to its position.
//
// An empty snapshot fails with snapshot.ErrEmptySnapshot before the index is
// touched. The replace is not atomic: if an upsert fails the collection keeps
// the batches written so far.
func (s *Syncer) Sync(ctx context.Context, snap *snapshot.Snapshot, collection string) (*SyncResult, error) {
	ctx, span := tracer().Start(ctx, "pipeline.sync")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if snap == nil {
		return nil, fail(span, snapshot.ErrEmptySnapshot)
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, fail(span, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fail(span, err)
	}
	dim, err := snap.Dimension()
	if err != nil {
		return nil, fail(span, fmt.Errorf("cannot sync to %s: %w", collection, err))
	}

	if err := s.index.RecreateCollection(ctx, collection, uint64(dim)); err != nil {
		return nil, fail(span, fmt.Errorf("recreate collection %s: %w", collection, err))
	}

	total := snap.Len()
	batches := 0
	for start := 0; start < total; start += s.batchSize {
		end := min(start+s.batchSize, total)

		points := make([]vectorstore.Point, 0, end-start)
		for i := start; i < end; i++ {
			r := snap.Record(i)
			points = append(points, vectorstore.Point{
				ID:      uint64(i),
				Vector:  r.Embedding,
				Payload: payloadFor(snap.Columns, r),
			})
		}

		if err := s.index.Upsert(ctx, collection, points); err != nil {
			s.logger.Warn(ctx, "sync aborted; collection is partially populated",
				zap.String("collection", collection),
				zap.Int("written", start),
				zap.Int("total", total),
			)
			return nil, fail(span, fmt.Errorf("upsert points %d-%d into %s: %w", start, end-1, collection, err))
		}
		batches++

		s.logger.Debug(ctx, "uploaded batch",
			zap.String("collection", collection),
			zap.Int("batch", batches),
			zap.Int("points", end),
			zap.Int("total", total),
		)
	}

	countRecords(ctx, s.records, "sync", total)
	span.SetAttributes(attribute.Int("points", total), attribute.Int("dimension", dim))

	s.logger.Info(ctx, "synced collection",
		zap.String("collection", collection),
		zap.Int("points", total),
		zap.Int("dimension", dim),
	)

	return &SyncResult{Collection: collection, Points: total, Batches: batches, Dimension: dim}, nil
}
