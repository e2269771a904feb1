// Package snapshot holds the locally persisted result of ingestion: texts,
// their embeddings, titles and categories as parallel arrays, plus the
// column mapping that says which input column supplied each role.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the snapshot file written inside an output directory.
const FileName = "vector_data.gob"

var (
	// ErrEmptySnapshot is returned when an operation needs at least one record.
	ErrEmptySnapshot = errors.New("snapshot has no records")

	// ErrInconsistent is returned when the parallel arrays disagree in
	// length or embeddings differ in dimension.
	ErrInconsistent = errors.New("snapshot is inconsistent")

	// ErrNotFound is returned when no snapshot exists at the given path.
	ErrNotFound = errors.New("snapshot not found")
)

// ColumnMapping records the source column name for each semantic role.
type ColumnMapping struct {
	Text     string
	Title    string
	Category string
}

// DefaultColumns returns the mapping used when the caller selects none.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{Text: "Summary", Title: "book_name", Category: "categories"}
}

// Validate checks that every role names a column and no column plays two roles.
func (c ColumnMapping) Validate() error {
	names := map[string]string{"text": c.Text, "title": c.Title, "category": c.Category}
	seen := make(map[string]string, 3)
	for _, role := range []string{"text", "title", "category"} {
		col := names[role]
		if col == "" {
			return fmt.Errorf("column for %s role is empty", role)
		}
		if other, ok := seen[col]; ok {
			return fmt.Errorf("column %q used for both %s and %s", col, other, role)
		}
		seen[col] = role
	}
	return nil
}

// Record is one row of a snapshot.
type Record struct {
	Text      string
	Embedding []float32
	Title     string
	Category  string
}

// Snapshot is immutable once built; a new ingestion replaces it wholesale.
type Snapshot struct {
	Columns    ColumnMapping
	Texts      []string
	Embeddings [][]float32
	Titles     []string
	Categories []string
}

// New builds a snapshot from records, preserving their order.
func New(cols ColumnMapping, records []Record) *Snapshot {
	s := &Snapshot{
		Columns:    cols,
		Texts:      make([]string, 0, len(records)),
		Embeddings: make([][]float32, 0, len(records)),
		Titles:     make([]string, 0, len(records)),
		Categories: make([]string, 0, len(records)),
	}
	for _, r := range records {
		s.Texts = append(s.Texts, r.Text)
		s.Embeddings = append(s.Embeddings, r.Embedding)
		s.Titles = append(s.Titles, r.Title)
		s.Categories = append(s.Categories, r.Category)
	}
	return s
}

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.Texts) }

// Record returns the i-th record.
func (s *Snapshot) Record(i int) Record {
	return Record{
		Text:      s.Texts[i],
		Embedding: s.Embeddings[i],
		Title:     s.Titles[i],
		Category:  s.Categories[i],
	}
}

// Dimension is the length of the first embedding.
func (s *Snapshot) Dimension() (int, error) {
	if s.Len() == 0 || len(s.Embeddings) == 0 {
		return 0, ErrEmptySnapshot
	}
	return len(s.Embeddings[0]), nil
}

// Validate checks the parallel-array and fixed-dimension invariants.
// An empty snapshot is valid; Sync rejects it separately.
func (s *Snapshot) Validate() error {
	if err := s.Columns.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	n := len(s.Texts)
	if len(s.Embeddings) != n || len(s.Titles) != n || len(s.Categories) != n {
		return fmt.Errorf("%w: texts=%d embeddings=%d titles=%d categories=%d",
			ErrInconsistent, n, len(s.Embeddings), len(s.Titles), len(s.Categories))
	}
	if n == 0 {
		return nil
	}
	dim := len(s.Embeddings[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-length embedding at 0", ErrInconsistent)
	}
	for i, e := range s.Embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrInconsistent, i, len(e), dim)
		}
	}
	return nil
}

// Path returns the snapshot file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Save validates s and writes it to Path(dir), creating dir if needed.
// The file is written to a temporary name and renamed into place.
func (s *Snapshot) Save(dir string) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := Path(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// Load reads a snapshot file. A directory is resolved to Path(dir).
func Load(path string) (*Snapshot, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = Path(path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &s, nil
}

// LoadColumns returns only the column mapping of the snapshot at path.
func LoadColumns(path string) (ColumnMapping, error) {
	s, err := Load(path)
	if err != nil {
		return ColumnMapping{}, err
	}
	return s.Columns, nil
}
