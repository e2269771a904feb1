package qdrant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClientConfig_ApplyDefaults(t *testing.T) {
	tests := []struct {
		name   string
		config *ClientConfig
		check  func(t *testing.T, cfg *ClientConfig)
	}{
		{
			name:   "empty config gets all defaults",
			config: &ClientConfig{},
			check: func(t *testing.T, cfg *ClientConfig) {
				assert.Equal(t, "localhost", cfg.Host)
				assert.Equal(t, 6334, cfg.Port)
				assert.False(t, cfg.UseTLS)
				assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
				assert.Equal(t, 5*time.Second, cfg.DialTimeout)
				assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
				assert.Equal(t, 0, cfg.RetryAttempts)
			},
		},
		{
			name: "partial config preserves set values",
			config: &ClientConfig{
				Host:          "qdrant.example.com",
				Port:          6335,
				RetryAttempts: 2,
			},
			check: func(t *testing.T, cfg *ClientConfig) {
				assert.Equal(t, "qdrant.example.com", cfg.Host)
				assert.Equal(t, 6335, cfg.Port)
				assert.Equal(t, 2, cfg.RetryAttempts)
				assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.ApplyDefaults()
			tt.check(t, tt.config)
		})
	}
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config *ClientConfig
		errMsg string
	}{
		{
			name:   "valid config",
			config: &ClientConfig{Host: "localhost", Port: 6334, MaxMessageSize: 1024},
		},
		{
			name:   "missing host",
			config: &ClientConfig{Port: 6334, MaxMessageSize: 1024},
			errMsg: "host is required",
		},
		{
			name:   "invalid port - zero",
			config: &ClientConfig{Host: "localhost", MaxMessageSize: 1024},
			errMsg: "invalid port",
		},
		{
			name:   "invalid port - too large",
			config: &ClientConfig{Host: "localhost", Port: 65536, MaxMessageSize: 1024},
			errMsg: "invalid port",
		},
		{
			name:   "invalid max message size",
			config: &ClientConfig{Host: "localhost", Port: 6334},
			errMsg: "invalid max message size",
		},
		{
			name:   "negative retries",
			config: &ClientConfig{Host: "localhost", Port: 6334, MaxMessageSize: 1024, RetryAttempts: -1},
			errMsg: "invalid retry attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestToPointStruct(t *testing.T) {
	p := vectorstore.Point{
		ID:     7,
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: map[string]string{
			"text":     "A hobbit goes on an adventure.",
			"title":    "The Hobbit",
			"category": "",
		},
	}

	ps := toPointStruct(p)

	require.NotNil(t, ps)
	assert.Equal(t, uint64(7), ps.GetId().GetNum())
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, ps.GetVectors().GetVector().GetDense().GetData())
	require.Len(t, ps.GetPayload(), 3)
	assert.Equal(t, "The Hobbit", ps.GetPayload()["title"].GetStringValue())
	assert.Equal(t, "", ps.GetPayload()["category"].GetStringValue())
}

func TestPointID(t *testing.T) {
	tests := []struct {
		name   string
		id     *qdrant.PointId
		want   uint64
		wantOK bool
	}{
		{name: "nil id", id: nil},
		{name: "zero is a valid id", id: qdrant.NewIDNum(0), want: 0, wantOK: true},
		{name: "numeric id", id: qdrant.NewIDNum(12345), want: 12345, wantOK: true},
		{name: "uuid id", id: qdrant.NewIDUUID("550e8400-e29b-41d4-a716-446655440000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pointID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayloadStrings(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]*qdrant.Value
		want    map[string]string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    nil,
		},
		{
			name: "scalar values are stringified",
			payload: map[string]*qdrant.Value{
				"string": qdrant.NewValueString("test"),
				"int":    qdrant.NewValueInt(42),
				"float":  qdrant.NewValueDouble(3.5),
				"bool":   qdrant.NewValueBool(true),
				"null":   qdrant.NewValueNull(),
			},
			want: map[string]string{
				"string": "test",
				"int":    "42",
				"float":  "3.5",
				"bool":   "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payloadStrings(tt.payload))
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "unavailable", err: status.Error(codes.Unavailable, "service unavailable"), want: true},
		{name: "deadline exceeded", err: status.Error(codes.DeadlineExceeded, "timeout"), want: true},
		{name: "aborted", err: status.Error(codes.Aborted, "aborted"), want: true},
		{name: "resource exhausted", err: status.Error(codes.ResourceExhausted, "too many requests"), want: true},
		{name: "not found", err: status.Error(codes.NotFound, "not found"), want: false},
		{name: "invalid argument", err: status.Error(codes.InvalidArgument, "bad request"), want: false},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "bad key"), want: false},
		{name: "non-grpc error", err: assert.AnError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestMapNotFound(t *testing.T) {
	assert.NoError(t, mapNotFound(nil, "books"))

	err := mapNotFound(fmt.Errorf("query failed: %w", status.Error(codes.NotFound, "Collection `books` doesn't exist")), "books")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
	assert.Contains(t, err.Error(), "books")

	other := status.Error(codes.Internal, "boom")
	assert.Equal(t, other, mapNotFound(other, "books"))
}

func newTestClient(retries int) (*GRPCClient, *logging.TestLogger) {
	tl := logging.NewTestLogger()
	return &GRPCClient{
		config: &ClientConfig{RetryAttempts: retries, RequestTimeout: time.Second},
		logger: tl.Logger,
	}, tl
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("no retries by default", func(t *testing.T) {
		c, _ := newTestClient(0)
		calls := 0
		err := c.withRetry(ctx, func() error {
			calls++
			return status.Error(codes.Unavailable, "down")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		c, _ := newTestClient(3)
		calls := 0
		err := c.withRetry(ctx, func() error {
			calls++
			return status.Error(codes.InvalidArgument, "bad vector")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient error recovers", func(t *testing.T) {
		c, tl := newTestClient(1)
		calls := 0
		err := c.withRetry(ctx, func() error {
			calls++
			if calls == 1 {
				return status.Error(codes.Unavailable, "down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		tl.AssertLogged(t, zapcore.InfoLevel, "qdrant call recovered")
	})

	t.Run("canceled context stops backoff", func(t *testing.T) {
		c, _ := newTestClient(5)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := c.withRetry(cctx, func() error {
			return status.Error(codes.Unavailable, "down")
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
