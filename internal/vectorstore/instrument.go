package vectorstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/vecli/internal/vectorstore")

// instrumented decorates an Index with a span and metrics per call.
type instrumented struct {
	next    Index
	backend string
	metrics *Metrics
}

// Instrument wraps idx. backend labels spans and metrics; m may be nil.
func Instrument(idx Index, backend string, m *Metrics) Index {
	return &instrumented{next: idx, backend: backend, metrics: m}
}

func (i *instrumented) start(ctx context.Context, op, collection string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs,
		attribute.String("db.system", i.backend),
		attribute.String("db.collection.name", collection),
	)
	ctx, span := tracer.Start(ctx, "Index."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (i *instrumented) finish(span trace.Span, op string, start time.Time, err error) {
	i.metrics.observe(i.backend, op, time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (i *instrumented) RecreateCollection(ctx context.Context, name string, dim uint64) (err error) {
	ctx, span, start := i.start(ctx, "RecreateCollection", name, attribute.Int64("vector_size", int64(dim)))
	defer func() { i.finish(span, "recreate_collection", start, err) }()
	return i.next.RecreateCollection(ctx, name, dim)
}

func (i *instrumented) Upsert(ctx context.Context, name string, points []Point) (err error) {
	ctx, span, start := i.start(ctx, "Upsert", name, attribute.Int("point_count", len(points)))
	defer func() { i.finish(span, "upsert", start, err) }()
	if err = i.next.Upsert(ctx, name, points); err == nil {
		i.metrics.points(i.backend, "written", len(points))
	}
	return err
}

func (i *instrumented) Scroll(ctx context.Context, name string, limit int) (recs []Record, err error) {
	ctx, span, start := i.start(ctx, "Scroll", name, attribute.Int("limit", limit))
	defer func() { i.finish(span, "scroll", start, err) }()
	recs, err = i.next.Scroll(ctx, name, limit)
	span.SetAttributes(attribute.Int("result_count", len(recs)))
	i.metrics.points(i.backend, "read", len(recs))
	return recs, err
}

func (i *instrumented) Search(ctx context.Context, name string, vector []float32, limit int) (hits []ScoredRecord, err error) {
	ctx, span, start := i.start(ctx, "Search", name, attribute.Int("limit", limit))
	defer func() { i.finish(span, "search", start, err) }()
	hits, err = i.next.Search(ctx, name, vector, limit)
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, err
}

func (i *instrumented) ListCollections(ctx context.Context) (names []string, err error) {
	ctx, span, start := i.start(ctx, "ListCollections", "")
	defer func() { i.finish(span, "list_collections", start, err) }()
	return i.next.ListCollections(ctx)
}

func (i *instrumented) DeleteCollection(ctx context.Context, name string) (err error) {
	ctx, span, start := i.start(ctx, "DeleteCollection", name)
	defer func() { i.finish(span, "delete_collection", start, err) }()
	return i.next.DeleteCollection(ctx, name)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
