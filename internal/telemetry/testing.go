package telemetry

import (
	"context"
	"slices"
	"testing"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry keeps every ended span and all metrics in memory. Unlike
// New it leaves the global providers alone; install TracerProvider with
// otel.SetTracerProvider when code under test uses the global tracer.
type TestTelemetry struct {
	*Telemetry
	spans   *tracetest.SpanRecorder
	metrics *sdkmetric.ManualReader
}

func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	metrics := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			logger:         logging.NewNop(),
			tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
			meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(metrics)),
		},
		spans:   spans,
		metrics: metrics,
	}
}

func (t *TestTelemetry) TracerProvider() *sdktrace.TracerProvider {
	return t.tracerProvider
}

// Spans returns the ended spans in end order.
func (t *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return t.spans.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) sdktrace.ReadOnlySpan {
	spans := t.Spans()
	if i := slices.IndexFunc(spans, func(s sdktrace.ReadOnlySpan) bool { return s.Name() == name }); i >= 0 {
		return spans[i]
	}
	return nil
}

func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) != nil {
		return
	}
	var names []string
	for _, s := range t.Spans() {
		names = append(names, s.Name())
	}
	tb.Errorf("span %q not recorded; have %v", name, names)
}

// AssertSpanAttribute compares the attribute's AsInterface value with want,
// so integers must be given as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, want any) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not recorded", spanName)
	}
	for _, kv := range span.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := kv.Value.AsInterface(); got != want {
			tb.Errorf("span %q: %s = %v (%T), want %v (%T)", spanName, key, got, got, want, want)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", spanName, key)
}

// Collect reads the current state of every instrument.
func (t *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := t.metrics.Collect(ctx, &rm)
	return rm, err
}
