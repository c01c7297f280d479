package redis

// Package redis provides Redis-backed adapters for the workspace shell:
// the durable and session key/value stores and the auth-state bus.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

var _ ports.KVStore = (*KVStore)(nil)

// KVStore is a Redis implementation of ports.KVStore. Session-scoped values
// rely on Redis key expiry for their TTL.
type KVStore struct {
	client redis.UniversalClient
	prefix string
}

// NewKVStore creates a Redis-based key/value store.
func NewKVStore(client redis.UniversalClient) *KVStore {
	return NewKVStoreWithPrefix(client, "wsd:")
}

// NewKVStoreWithPrefix creates a Redis key/value store with a custom key prefix.
func NewKVStoreWithPrefix(client redis.UniversalClient, prefix string) *KVStore {
	return &KVStore{client: client, prefix: prefix}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes keys through a pipeline so cluster clients can route each key to its own slot.
func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, s.prefix+k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
