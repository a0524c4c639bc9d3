package storage

import (
	"context"
	"sync"
)

// MemoryStorage is a process-local Storage used by tests and the memory driver.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, origin, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.records[recordKey(origin, key)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryStorage) Set(_ context.Context, origin, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[recordKey(origin, key)] = value
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, origin, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, recordKey(origin, key))
	return nil
}
