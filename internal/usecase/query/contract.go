package query

import (
	"context"
	"time"
)

// Cache is the optional processed-query cache (ISP: consumer-side interface).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
