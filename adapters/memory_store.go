package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/satriahrh/drishti/domain"
)

// MemoryStore is an in-memory implementation of KeyValueStore.
// Values are copied on the way in and out so callers cannot alias stored state.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]byte // namespace -> key -> value
}

// NewMemoryStore creates a new in-memory key-value store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string][]byte),
	}
}

// Get implements KeyValueStore interface
func (m *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.namespaces[namespace][key]
	if !exists {
		return nil, fmt.Errorf("key %s/%s: %w", namespace, key, domain.ErrNotFound)
	}
	return append([]byte(nil), value...), nil
}

// Set implements KeyValueStore interface
func (m *MemoryStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("namespace and key are required: %w", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, exists := m.namespaces[namespace]
	if !exists {
		entries = make(map[string][]byte)
		m.namespaces[namespace] = entries
	}
	entries[key] = append([]byte(nil), value...)
	return nil
}

// Keys implements KeyValueStore interface
func (m *MemoryStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.namespaces[namespace]))
	for key := range m.namespaces[namespace] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear implements KeyValueStore interface
func (m *MemoryStore) Clear(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.namespaces, namespace)
	return nil
}
