package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// SearchExportSuffix is appended to the collection name for exported search results.
const SearchExportSuffix = "_search_export"

// ExportRequest selects records to scroll out of a collection.
type ExportRequest struct {
	Collection string
	Limit      int
	Format     string
	OutputDir  string
	Columns    snapshot.ColumnMapping
}

// SearchExportRequest describes where search results are written.
type SearchExportRequest struct {
	Collection string
	Format     string
	OutputDir  string
	Columns    snapshot.ColumnMapping
}

// ExportResult describes a written export file.
type ExportResult struct {
	Path  string
	Count int
}

// Exporter writes collection contents and search results to files.
type Exporter struct {
	index   vectorstore.Index
	logger  *logging.Logger
	records metric.Int64Counter
}

// NewExporter returns an Exporter reading from idx.
func NewExporter(idx vectorstore.Index, logger *logging.Logger) (*Exporter, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{index: idx, logger: logger, records: newRecordCounter(logger)}, nil
}

// Export scrolls up to req.Limit records from req.Collection and writes them to
// <OutputDir>/<Collection>.<Format> with fields in title, category, text order,
// keyed by the mapped column names. Missing fields are written as "".
//
// An unsupported format returns ErrUnsupportedFormat before the index is
// queried or anything is written.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	ctx, span := tracer().Start(ctx, "pipeline.export")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", req.Collection),
		attribute.String("format", req.Format),
		attribute.Int("limit", req.Limit),
	)

	if err := checkFormat(req.Format); err != nil {
		return nil, fail(span, err)
	}
	if req.Limit <= 0 {
		return nil, fail(span, fmt.Errorf("%w: got %d", ErrInvalidLimit, req.Limit))
	}
	if err := req.Columns.Validate(); err != nil {
		return nil, fail(span, fmt.Errorf("invalid column mapping: %w", err))
	}
	if err := requireCollection(ctx, e.index, req.Collection); err != nil {
		return nil, fail(span, err)
	}

	recs, err := e.index.Scroll(ctx, req.Collection, req.Limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("scroll %s: %w", req.Collection, err))
	}

	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = rowFrom(req.Columns, rec, "")
	}

	path := filepath.Join(req.OutputDir, req.Collection+"."+req.Format)
	if err := writeRows(path, req.Format, req.Columns, rows); err != nil {
		return nil, fail(span, err)
	}

	countRecords(ctx, e.records, "export", len(rows))
	span.SetAttributes(attribute.Int("records", len(rows)))
	e.logger.Info(ctx, "exported records",
		zap.String("collection", req.Collection),
		zap.String("path", path),
		zap.Int("count", len(rows)),
	)
	return &ExportResult{Path: path, Count: len(rows)}, nil
}

// ExportSearch writes search results to
// <OutputDir>/<Collection>_search_export.<Format>, keyed like Export.
// Scores are not written.
func (e *Exporter) ExportSearch(ctx context.Context, results []SearchResult, req SearchExportRequest) (*ExportResult, error) {
	ctx, span := tracer().Start(ctx, "pipeline.export_search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", req.Collection),
		attribute.String("format", req.Format),
	)

	if err := checkFormat(req.Format); err != nil {
		return nil, fail(span, err)
	}
	if err := req.Columns.Validate(); err != nil {
		return nil, fail(span, fmt.Errorf("invalid column mapping: %w", err))
	}

	rows := make([]Row, len(results))
	for i, r := range results {
		rows[i] = Row{Title: r.Title, Category: r.Category, Text: r.Text}
	}

	path := filepath.Join(req.OutputDir, req.Collection+SearchExportSuffix+"."+req.Format)
	if err := writeRows(path, req.Format, req.Columns, rows); err != nil {
		return nil, fail(span, err)
	}

	countRecords(ctx, e.records, "export_search", len(rows))
	e.logger.Info(ctx, "exported search results",
		zap.String("collection", req.Collection),
		zap.String("path", path),
		zap.Int("count", len(rows)),
	)
	return &ExportResult{Path: path, Count: len(rows)}, nil
}

func checkFormat(format string) error {
	switch format {
	case FormatJSON, FormatCSV:
		return nil
	default:
		return fmt.Errorf("%w: %q (use json or csv)", ErrUnsupportedFormat, format)
	}
}

// writeRows creates the parent directory and writes rows to path.
func writeRows(path, format string, cols snapshot.ColumnMapping, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	switch format {
	case FormatCSV:
		err = writeCSV(f, cols, rows)
	default:
		err = writeJSON(f, cols, rows)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func header(cols snapshot.ColumnMapping) []string {
	return []string{cols.Title, cols.Category, cols.Text}
}

func writeCSV(w io.Writer, cols snapshot.ColumnMapping, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(cols)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Title, r.Category, r.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// orderedRow marshals as a JSON object whose keys keep header order.
type orderedRow struct {
	keys   []string
	values []string
}

func (o orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		buf.WriteByte(':')
		if err := enc.Encode(o.values[i]); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON writes an indented array. Non-ASCII text is kept literal.
func writeJSON(w io.Writer, cols snapshot.ColumnMapping, rows []Row) error {
	keys := header(cols)
	out := make([]orderedRow, len(rows))
	for i, r := range rows {
		out[i] = orderedRow{keys: keys, values: []string{r.Title, r.Category, r.Text}}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
