// Package catalog persists resource records under a single key of a
// key-value backend and computes filtered, sorted views over them.
package catalog

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by a KV backend when the key has never been written.
var ErrKeyNotFound = errors.New("catalog: key not found")

// KV is the string key-value backend the catalog and preferences live in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKV keeps values in process memory. Used by tests and by the "memory" backend.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
