package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

// letterEmbedder maps text to a normalized 26-dim letter histogram.
type letterEmbedder struct {
	mu      sync.Mutex
	calls   int
	queries []string
	err     error
}

func embedLetters(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedLetters(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.queries = append(e.queries, text)
	if e.err != nil {
		return nil, e.err
	}
	return embedLetters(text), nil
}

type memCollection struct {
	dim    uint64
	points map[uint64]vectorstore.Point
}

// memIndex is an in-memory vectorstore.Index with exact cosine search.
type memIndex struct {
	mu          sync.Mutex
	collections map[string]*memCollection

	recreates   int
	upserts     int
	lastFetch   int
	failUpsertN int // fail the n-th upsert (1-based); 0 never fails
	searchErr   error
}

var errUpsertFailed = errors.New("upsert failed")

func newMemIndex() *memIndex {
	return &memIndex{collections: map[string]*memCollection{}}
}

func (m *memIndex) RecreateCollection(_ context.Context, name string, dim uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recreates++
	m.collections[name] = &memCollection{dim: dim, points: map[uint64]vectorstore.Point{}}
	return nil
}

func (m *memIndex) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failUpsertN > 0 && m.upserts == m.failUpsertN {
		return errUpsertFailed
	}
	c, ok := m.collections[name]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != c.dim {
			return vectorstore.ErrDimensionMismatch
		}
		c.points[p.ID] = p
	}
	return nil
}

func (m *memIndex) sortedIDs(c *memCollection) []uint64 {
	ids := make([]uint64, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memIndex) Scroll(_ context.Context, name string, limit int) ([]vectorstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	var out []vectorstore.Record
	for _, id := range m.sortedIDs(c) {
		if len(out) >= limit {
			break
		}
		out = append(out, vectorstore.Record{ID: id, Payload: c.points[id].Payload})
	}
	return out, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func (m *memIndex) Search(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFetch = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	c, ok := m.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	var hits []vectorstore.ScoredRecord
	for _, id := range m.sortedIDs(c) {
		p := c.points[id]
		hits = append(hits, vectorstore.ScoredRecord{
			Record: vectorstore.Record{ID: id, Payload: p.Payload},
			Score:  cosine(vector, p.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memIndex) ListCollections(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memIndex) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return vectorstore.ErrCollectionNotFound
	}
	delete(m.collections, name)
	return nil
}

func (m *memIndex) Close() error { return nil }

func (m *memIndex) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		return len(c.points)
	}
	return -1
}

// seed stores points directly, bypassing Sync.
func (m *memIndex) seed(t *testing.T, name string, points ...vectorstore.Point) {
	t.Helper()
	dim := uint64(3)
	if len(points) > 0 {
		dim = uint64(len(points[0].Vector))
	}
	require.NoError(t, m.RecreateCollection(context.Background(), name, dim))
	require.NoError(t, m.Upsert(context.Background(), name, points))
}

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func bookSnapshot(n int) *snapshot.Snapshot {
	records := make([]snapshot.Record, n)
	for i := range records {
		records[i] = snapshot.Record{
			Text:      strings.Repeat("x", i+1) + " summary",
			Embedding: []float32{float32(i + 1), 1, 0},
			Title:     "Book " + string(rune('A'+i)),
			Category:  "Fiction",
		}
	}
	return snapshot.New(snapshot.DefaultColumns(), records)
}
