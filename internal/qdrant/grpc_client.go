// Package qdrant implements vectorstore.Index on top of a Qdrant server.
package qdrant

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// scrollPageSize bounds a single Scroll request.
const scrollPageSize = 256

// GRPCClient is a vectorstore.Index backed by Qdrant's gRPC API.
type GRPCClient struct {
	client *qdrant.Client
	config *ClientConfig
	logger *logging.Logger
}

var _ vectorstore.Index = (*GRPCClient)(nil)

// NewGRPCClient connects to Qdrant and fails unless the server answers a
// health check within DialTimeout. config may be nil for a local server and
// a nil logger discards output.
func NewGRPCClient(config *ClientConfig, logger *logging.Logger) (*GRPCClient, error) {
	if config == nil {
		config = &ClientConfig{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        config.Host,
		Port:        config.Port,
		UseTLS:      config.UseTLS,
		APIKey:      config.APIKey,
		GrpcOptions: dialOptions(config),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	c := &GRPCClient{client: client, config: config, logger: logger.Named("qdrant")}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	c.logger.Debug(ctx, "connecting to qdrant",
		zap.String("addr", fmt.Sprintf("%s:%d", config.Host, config.Port)),
		zap.Bool("tls", config.UseTLS))

	if err := c.Health(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant at %s:%d is unreachable: %w", config.Host, config.Port, err)
	}
	return c, nil
}

func dialOptions(config *ClientConfig) []grpc.DialOption {
	opts := []grpc.DialOption{grpc.WithDefaultCallOptions(
		grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
		grpc.MaxCallSendMsgSize(config.MaxMessageSize),
	)}
	if !config.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	return opts
}

// call runs fn under RequestTimeout with retries. A NotFound status from
// fn becomes vectorstore.ErrCollectionNotFound for collection.
func (c *GRPCClient) call(ctx context.Context, collection string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	err := c.withRetry(ctx, func() error { return fn(ctx) })
	if collection == "" {
		return err
	}
	return mapNotFound(err, collection)
}

// Health checks that the server is reachable.
func (c *GRPCClient) Health(ctx context.Context) error {
	return c.call(ctx, "", func(ctx context.Context) error {
		_, err := c.client.HealthCheck(ctx)
		return err
	})
}

// RecreateCollection drops name if present and creates it empty, with dim
// dimensional vectors compared by cosine distance.
func (c *GRPCClient) RecreateCollection(ctx context.Context, name string, dim uint64) error {
	if err := vectorstore.ValidateCollectionName(name); err != nil {
		return err
	}
	if dim == 0 {
		return fmt.Errorf("%w: vector size must be positive", vectorstore.ErrDimensionMismatch)
	}

	exists, err := vectorstore.CollectionExists(ctx, c, name)
	if err != nil {
		return err
	}
	if exists {
		if err := c.call(ctx, "", func(ctx context.Context) error {
			return c.client.DeleteCollection(ctx, name)
		}); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		c.logger.Debug(ctx, "dropped existing collection", zap.String("collection", name))
	}

	create := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	}
	if err := c.call(ctx, "", func(ctx context.Context) error {
		return c.client.CreateCollection(ctx, create)
	}); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points and returns once Qdrant has applied them.
func (c *GRPCClient) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	req := &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         make([]*qdrant.PointStruct, 0, len(points)),
		Wait:           qdrant.PtrOf(true),
	}
	for _, p := range points {
		req.Points = append(req.Points, toPointStruct(p))
	}
	return c.call(ctx, name, func(ctx context.Context) error {
		_, err := c.client.Upsert(ctx, req)
		return err
	})
}

// Scroll returns up to limit records in Qdrant's id order, following the
// server's page offsets.
func (c *GRPCClient) Scroll(ctx context.Context, name string, limit int) ([]vectorstore.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	records := make([]vectorstore.Record, 0, min(limit, scrollPageSize))
	var offset *qdrant.PointId
	for {
		page := min(limit-len(records), scrollPageSize)
		req := &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(page)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		}

		var points []*qdrant.RetrievedPoint
		err := c.call(ctx, name, func(ctx context.Context) error {
			var err error
			points, offset, err = c.client.ScrollAndOffset(ctx, req)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, p := range points {
			if rec, ok := toRecord(p.GetId(), p.GetPayload()); ok {
				records = append(records, rec)
			}
		}
		if offset == nil || len(points) < page || len(records) >= limit {
			return records, nil
		}
	}
}

// Search returns the limit nearest neighbours of vector, best first.
func (c *GRPCClient) Search(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	var scored []*qdrant.ScoredPoint
	err := c.call(ctx, name, func(ctx context.Context) error {
		var err error
		scored, err = c.client.Query(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	hits := make([]vectorstore.ScoredRecord, 0, len(scored))
	for _, p := range scored {
		if rec, ok := toRecord(p.GetId(), p.GetPayload()); ok {
			hits = append(hits, vectorstore.ScoredRecord{Record: rec, Score: p.GetScore()})
		}
	}
	return hits, nil
}

// ListCollections returns the names of all collections on the server.
func (c *GRPCClient) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := c.call(ctx, "", func(ctx context.Context) error {
		var err error
		names, err = c.client.ListCollections(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// DeleteCollection drops name, returning vectorstore.ErrCollectionNotFound
// if it does not exist.
func (c *GRPCClient) DeleteCollection(ctx context.Context, name string) error {
	exists, err := vectorstore.CollectionExists(ctx, c, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	return c.call(ctx, name, func(ctx context.Context) error {
		return c.client.DeleteCollection(ctx, name)
	})
}

// Close releases the gRPC connection.
func (c *GRPCClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
