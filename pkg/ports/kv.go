package ports

import "context"

// KeyValueStore is a shared put/get/delete store. It is the single
// source of truth for session ownership: a record must be written
// before any cross-node relay is attempted.
type KeyValueStore interface {
	Put(ctx context.Context, key, value string) error

	// Get returns domain.ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error
}
