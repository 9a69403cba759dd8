package repositories

import "context"

// KeyValueStore persists small JSON documents grouped by namespace.
// Get returns domain.ErrNotFound for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Keys(ctx context.Context, namespace string) ([]string, error)
	Clear(ctx context.Context, namespace string) error
}
