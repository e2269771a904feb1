// Package table reads the tabular input files that feed ingestion.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedTable is returned for input files whose extension has no reader.
var ErrUnsupportedTable = errors.New("unsupported table format")

// MissingColumnError reports a selector that names no column in the header.
type MissingColumnError struct {
	Column string
	Have   []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in input (columns: %s)", e.Column, strings.Join(e.Have, ", "))
}

// Table is a header plus data rows. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read loads a .csv, .tsv or .xlsx file. The first row is the header.
func Read(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open table: %w", err)
		}
		defer f.Close()
		comma := ','
		if ext == ".tsv" {
			comma = '\t'
		}
		return readDelimited(f, comma)
	case ".xlsx":
		return readExcel(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTable, ext)
	}
}

func readDelimited(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	return fromRecords(records), nil
}

func readExcel(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return fromRecords(rows), nil
}

func fromRecords(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &Table{Header: header, Rows: records[1:]}
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, &MissingColumnError{Column: name, Have: t.Header}
}

// Select projects every row onto the named columns, in the given order.
// All names are resolved before any row is touched, so a missing column
// fails the whole call. Cells past the end of a short row read as "".
func (t *Table) Select(names ...string) ([][]string, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, err := t.Index(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		vals := make([]string, len(idx))
		for i, j := range idx {
			if j < len(row) {
				vals[i] = row[j]
			}
		}
		out = append(out, vals)
	}
	return out, nil
}
