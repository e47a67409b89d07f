// Package cache provides the best-effort key-value cache used for embedding
// vectors and search results. A cache failure never fails the operation that
// consulted it; callers treat any error other than ErrMiss as a miss too and
// log it.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("cache: miss")

// Cache is a minimal TTL key-value store. Values are opaque byte slices;
// serialization is the caller's concern.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
