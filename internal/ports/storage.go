package ports

import (
	"context"
	"time"
)

// KVStore is a flat string key/value store. A zero ttl means the value does not expire.
type KVStore interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ExpiringStore is a KVStore that needs expired entries removed explicitly.
type ExpiringStore interface {
	PurgeExpired(ctx context.Context, batchSize int) (int64, error)
}
