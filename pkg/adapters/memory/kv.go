package memory

import (
	"context"
	"sync"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// KV implements ports.KeyValueStore in memory.
// Safe for concurrent use.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKV creates a new in-memory key-value store.
func NewKV() *KV {
	return &KV{
		data: make(map[string]string),
	}
}

// Put stores the value under the key, overwriting any previous value.
func (s *KV) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Get retrieves the value for the key.
func (s *KV) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

// Delete removes the key. Deleting an absent key is a no-op.
func (s *KV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
