package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vecli/internal/pipeline"

var (
	// ErrUnsupportedFormat is returned for an export format other than json or csv.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidLimit is returned when a result or page limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrEmptyQuery is returned for a search query with no text.
	ErrEmptyQuery = errors.New("search query must not be empty")
)

// NotAvailable stands in for a payload field missing from a search hit or
// inspected record.
const NotAvailable = "N/A"

// Row is a stored record resolved to its title, category and text roles.
type Row struct {
	ID       uint64
	Title    string
	Category string
	Text     string
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// newRecordCounter counts records flowing through each operation.
func newRecordCounter(logger *logging.Logger) metric.Int64Counter {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"vecli.pipeline.records",
		metric.WithDescription("Records processed by pipeline operations"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		logger.Warn(context.Background(), "failed to create record counter", zap.Error(err))
		return nil
	}
	return counter
}

func countRecords(ctx context.Context, c metric.Int64Counter, op string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("operation", op)))
}

// fail records err on span and returns it unchanged.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// requireCollection returns vectorstore.ErrCollectionNotFound unless name is
// among the index's collections.
func requireCollection(ctx context.Context, idx vectorstore.Index, name string) error {
	exists, err := vectorstore.CollectionExists(ctx, idx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	return nil
}

// field reads key from payload, substituting missing when absent.
func field(payload map[string]string, key, missing string) string {
	if v, ok := payload[key]; ok {
		return v
	}
	return missing
}

// payloadFor stores a snapshot record under the mapped column names.
func payloadFor(cols snapshot.ColumnMapping, r snapshot.Record) map[string]string {
	return map[string]string{
		cols.Text:     r.Text,
		cols.Title:    r.Title,
		cols.Category: r.Category,
	}
}

func rowFrom(cols snapshot.ColumnMapping, rec vectorstore.Record, missing string) Row {
	return Row{
		ID:       rec.ID,
		Title:    field(rec.Payload, cols.Title, missing),
		Category: field(rec.Payload, cols.Category, missing),
		Text:     field(rec.Payload, cols.Text, missing),
	}
}
