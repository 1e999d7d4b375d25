package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory cookie store. Entries are lost on exit,
// suitable for tests and one-shot runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]Entry)}
}

// Get returns the cookie string for the key or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return e.Value, nil
}

// Put stores the cookie string for the key.
func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

// Delete removes the key or returns ErrNotFound.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// List returns all entries, most recently updated first.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Entry, 0, len(m.data))
	for _, e := range m.data {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].Key < res[j].Key
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
