// Package cache provides TTL key-value storage for computed analytics payloads,
// with an in-process default and an optional Redis backend for multi-instance
// deployments.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads under string keys with per-entry TTLs.
// Get reports a miss, not an error, for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
