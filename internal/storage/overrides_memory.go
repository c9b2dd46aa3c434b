package storage

import (
	"context"
	"sync"
)

// MemoryOverrides keeps overrides for the lifetime of the process.
type MemoryOverrides struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{values: make(map[string]string)}
}

func (m *MemoryOverrides) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryOverrides) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryOverrides) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryOverrides) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
