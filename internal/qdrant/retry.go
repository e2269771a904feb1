package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const initialBackoff = time.Second

// withRetry runs fn until it succeeds, fails permanently or RetryAttempts
// retries are spent. The wait doubles after every attempt.
func (c *GRPCClient) withRetry(ctx context.Context, fn func() error) error {
	start := time.Now()
	wait := initialBackoff

	for attempt := 0; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			if attempt > 0 {
				c.logger.Info(ctx, "qdrant call recovered",
					zap.Int("retries", attempt),
					zap.Duration("elapsed", time.Since(start)))
			}
			return nil
		case !IsTransientError(err):
			return err
		case attempt == c.config.RetryAttempts:
			if attempt == 0 {
				return err
			}
			c.logger.Warn(ctx, "qdrant call failed after retries",
				zap.Int("retries", attempt),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return fmt.Errorf("giving up after %d retries: %w", attempt, err)
		}

		c.logger.Debug(ctx, "retrying qdrant call",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-timer.C:
		}
		wait *= 2
	}
}

// IsTransientError reports whether err carries a gRPC status that a retry
// may clear.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	}
	return false
}

// mapNotFound turns a gRPC NotFound into vectorstore.ErrCollectionNotFound.
func mapNotFound(err error, collection string) error {
	var withStatus interface{ GRPCStatus() *status.Status }
	if errors.As(err, &withStatus) && withStatus.GRPCStatus().Code() == codes.NotFound {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
	}
	return err
}
