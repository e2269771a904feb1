package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_RequestAndSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "abc-1")

	fields := ContextFields(ctx)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.ElementsMatch(t, []string{"trace_id", "span_id", "request.id"}, keys)
}

func TestWithRequestID_RejectsInvalid(t *testing.T) {
	for _, id := range []string{"", "has space", "semi;colon", strings.Repeat("x", maxIDLen+1)} {
		assert.Panics(t, func() { WithRequestID(context.Background(), id) }, id)
	}
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	ctx = WithRequestID(ctx, "req-9")

	FromContext(ctx).Info(ctx, "searched")
	tl.AssertRequestID(t, "searched", "req-9")
}
