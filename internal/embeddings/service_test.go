package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTEI answers /embed with one vector per input whose first component is
// the input length.
func fakeTEI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Inputs   json.RawMessage `json:"inputs"`
			Truncate bool            `json:"truncate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.True(t, req.Truncate)

		var inputs []string
		if err := json.Unmarshal(req.Inputs, &inputs); err != nil {
			var single string
			if err := json.Unmarshal(req.Inputs, &single); err != nil {
				http.Error(w, "bad inputs", http.StatusUnprocessableEntity)
				return
			}
			inputs = []string{single}
		}

		out := make([][]float32, len(inputs))
		for i, in := range inputs {
			out[i] = []float32{float32(len(in)), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		wantDim int
	}{
		{name: "known model", cfg: Config{BaseURL: "http://localhost:8080", Model: DefaultModel}, wantDim: 384},
		{name: "guessed large", cfg: Config{BaseURL: "http://localhost:8080", Model: "intfloat/e5-large-v2"}, wantDim: 1024},
		{name: "explicit dimension", cfg: Config{BaseURL: "http://x", Model: "custom", Dimension: 42}, wantDim: 42},
		{name: "missing base url", cfg: Config{Model: DefaultModel}, wantErr: "base URL required"},
		{name: "negative rate", cfg: Config{BaseURL: "http://x", RateLimit: -1}, wantErr: "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, svc.Dimension())
			assert.NoError(t, svc.Close())
		})
	}
}

func TestService_EmbedDocumentsBatches(t *testing.T) {
	var calls atomic.Int32
	srv := fakeTEI(t, &calls)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL + "/", Model: DefaultModel, BatchSize: 2})
	require.NoError(t, err)

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestService_EmbedQuery(t *testing.T) {
	var calls atomic.Int32
	srv := fakeTEI(t, &calls)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Model: DefaultModel})
	require.NoError(t, err)

	v, err := svc.EmbedQuery(context.Background(), "wizard")
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 1, 0}, v)
}

func TestService_EmptyInput(t *testing.T) {
	svc, err := NewService(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestService_ShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1,2,3]]`))
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestService_RateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := fakeTEI(t, &calls)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, RateLimit: 0.01})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.EmbedQuery(ctx, "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = svc.EmbedQuery(ctx, "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), calls.Load())
}
