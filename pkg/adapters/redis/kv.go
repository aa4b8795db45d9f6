// Package redis backs the dispatch ports with Redis: plain keys for
// the shared key-value store, a stream with a consumer group for the
// job queue, and pub/sub channels for the response bus.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// KV implements ports.KeyValueStore using Redis.
type KV struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// KVOption configures the KV store.
type KVOption func(*KV)

// WithTTL sets an expiration on stored keys. Zero means no expiration.
func WithTTL(ttl time.Duration) KVOption {
	return func(s *KV) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) KVOption {
	return func(s *KV) {
		s.prefix = prefix
	}
}

// NewKV creates a Redis-backed key-value store from an existing client.
func NewKV(client *backend.Client, opts ...KVOption) *KV {
	s := &KV{
		client: client,
		prefix: "dispatch:kv:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

// Put stores the value, overwriting any previous one.
func (s *KV) Put(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put to redis: %w", err)
	}
	return nil
}

// Get retrieves the value for the key.
func (s *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return "", domain.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Delete removes the key. Absent keys are a no-op.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}
