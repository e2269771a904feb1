package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// errNoEmbedder is returned if chromem ever asks for an embedding; every
// document and query carries a precomputed vector.
var errNoEmbedder = errors.New("chromem index only accepts precomputed embeddings")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

// ChromemConfig holds configuration for the embedded chromem-go index.
type ChromemConfig struct {
	// Path is the directory for persistent storage. A leading ~ is expanded.
	Path string
	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: chromem path is required", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex implements Index with an on-disk chromem-go database.
//
// chromem-go normalizes vectors on insert and ranks by dot product, which
// is cosine similarity. It has no listing API, so Scroll probes ids
// 0..Count-1; that covers every point written by sync.
type ChromemIndex struct {
	db     *chromem.DB
	logger *zap.Logger

	mu   sync.Mutex
	dims map[string]int
}

// NewChromemIndex opens (or creates) the database at cfg.Path.
func NewChromemIndex(cfg ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := expandHome(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := openChromemDB(path, cfg.Compress, logger)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	logger.Debug("chromem index opened", zap.String("path", path), zap.Bool("compress", cfg.Compress))
	return &ChromemIndex{db: db, logger: logger, dims: map[string]int{}}, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

func (c *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	coll := c.db.GetCollection(name, noEmbedding)
	if coll == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return coll, nil
}

// RecreateCollection drops and recreates name.
func (c *ChromemIndex) RecreateCollection(_ context.Context, name string, dim uint64) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dim == 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrDimensionMismatch)
	}

	if c.db.GetCollection(name, noEmbedding) != nil {
		if err := c.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
	}
	meta := map[string]string{"dimension": strconv.FormatUint(dim, 10), "distance": "cosine"}
	if _, err := c.db.CreateCollection(name, meta, noEmbedding); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	c.mu.Lock()
	c.dims[name] = int(dim)
	c.mu.Unlock()
	return nil
}

// Upsert adds points; an existing id is overwritten.
func (c *ChromemIndex) Upsert(ctx context.Context, name string, points []Point) error {
	coll, err := c.collection(name)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	c.mu.Lock()
	want, known := c.dims[name]
	c.mu.Unlock()
	if !known {
		want = len(points[0].Vector)
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != want {
			return fmt.Errorf("%w: point %d has %d dimensions, collection has %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), want)
		}
		docs[i] = chromem.Document{
			ID:        strconv.FormatUint(p.ID, 10),
			Embedding: p.Vector,
			Metadata:  p.Payload,
		}
	}

	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}
	return nil
}

// Scroll returns up to limit records in id order.
func (c *ChromemIndex) Scroll(ctx context.Context, name string, limit int) ([]Record, error) {
	coll, err := c.collection(name)
	if err != nil {
		return nil, err
	}

	count := coll.Count()
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Record, 0, limit)
	for id := 0; id < count && len(out) < limit; id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := coll.GetByID(ctx, strconv.Itoa(id))
		if err != nil {
			continue
		}
		out = append(out, Record{ID: uint64(id), Payload: doc.Metadata})
	}
	return out, nil
}

// Search returns up to limit hits ordered by descending similarity.
func (c *ChromemIndex) Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredRecord, error) {
	coll, err := c.collection(name)
	if err != nil {
		return nil, err
	}

	n := coll.Count()
	if limit < n {
		n = limit
	}
	if n <= 0 {
		return []ScoredRecord{}, nil
	}

	results, err := coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	out := make([]ScoredRecord, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseUint(r.ID, 10, 64)
		if err != nil {
			c.logger.Warn("skipping document with non-numeric id",
				zap.String("collection", name), zap.String("id", r.ID))
			continue
		}
		out = append(out, ScoredRecord{
			Record: Record{ID: id, Payload: r.Metadata},
			Score:  r.Similarity,
		})
	}
	return out, nil
}

// ListCollections returns collection names sorted alphabetically.
func (c *ChromemIndex) ListCollections(_ context.Context) ([]string, error) {
	colls := c.db.ListCollections()
	names := make([]string, 0, len(colls))
	for name := range colls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteCollection removes name and its files.
func (c *ChromemIndex) DeleteCollection(_ context.Context, name string) error {
	if _, err := c.collection(name); err != nil {
		return err
	}
	if err := c.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	c.mu.Lock()
	delete(c.dims, name)
	c.mu.Unlock()
	return nil
}

// Close is a no-op; chromem writes through on every change.
func (c *ChromemIndex) Close() error {
	return nil
}

var _ Index = (*ChromemIndex)(nil)
