package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vecli/internal/embeddings"

// Metrics records how long embedding calls take, how many texts they carry
// and how often they fail, keyed by model and operation.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	failures  metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider, which
// is a no-op until telemetry is enabled.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	var m Metrics
	var errs, err error

	m.duration, err = meter.Float64Histogram("vecli.embedding.generation_duration_seconds",
		metric.WithDescription("Time spent generating embeddings"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	errs = errors.Join(errs, err)

	m.batchSize, err = meter.Int64Histogram("vecli.embedding.batch_size",
		metric.WithDescription("Texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 8, 16, 32, 64, 128, 256, 512))
	errs = errors.Join(errs, err)

	m.failures, err = meter.Int64Counter("vecli.embedding.errors_total",
		metric.WithDescription("Failed embedding calls"),
		metric.WithUnit("{error}"))
	errs = errors.Join(errs, err)

	if errs != nil && logger != nil {
		logger.Warn("embedding metrics partially unavailable", zap.Error(errs))
	}

	// A failed instrument is replaced so recording never needs a nil check.
	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	if m.duration == nil {
		m.duration, _ = fallback.Float64Histogram("duration")
	}
	if m.batchSize == nil {
		m.batchSize, _ = fallback.Int64Histogram("batch_size")
	}
	if m.failures == nil {
		m.failures, _ = fallback.Int64Counter("errors")
	}
	return &m
}

// RecordGeneration records one embedding call of batchSize texts.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	if batchSize > 0 {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}

// observe starts timing a call of n texts. The returned func records it
// with the error *errp held when the call returned:
//
//	defer m.observe(ctx, model, "embed_query", 1)(&err)
func (m *Metrics) observe(ctx context.Context, model, operation string, n int) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		m.RecordGeneration(ctx, model, operation, time.Since(start), n, *errp)
	}
}
