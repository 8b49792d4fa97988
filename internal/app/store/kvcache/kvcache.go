// Package kvcache is the process-wide key/value store the assignment board
// persists its local snapshots into.
//
// It mirrors a browser-style storage area: string keys, string values,
// explicit Get/Set, no implicit lifecycle. Callers inject a Cache so the
// engine can run against Redis, MongoDB, or the in-memory stand-in.
package kvcache

import (
	"context"
	"sync"
)

// Cache is a process-wide key/value store.
//
// Get reports found=false with a nil error when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Memory is an in-memory Cache. The zero value is not usable; call NewMemory.
type Memory struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{vals: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vals)
}
