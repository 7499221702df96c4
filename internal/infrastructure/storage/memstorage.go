// Package storage provides an in-memory implementation of
// resolver.ObjectStorage for tests and local development. spec.md §1
// Non-goals excludes real object-storage I/O, so no vendor SDK (S3, GCS,
// ...) is wired here; this adapter exists solely to make the resolver and
// reference processors exercisable end-to-end without a real bucket.
package storage

import (
	"context"
	"sync"

	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// MemStorage is a thread-safe, in-memory resolver.ObjectStorage.
type MemStorage struct {
	mu    sync.RWMutex
	data  map[string][]byte
	mimes map[string]string
}

// New creates an empty MemStorage.
func New() *MemStorage {
	return &MemStorage{
		data:  make(map[string][]byte),
		mimes: make(map[string]string),
	}
}

// Put stores bytes and an optional mime type under key.
func (m *MemStorage) Put(key string, data []byte, mimeType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	if mimeType != "" {
		m.mimes[key] = mimeType
	}
}

// Get returns the bytes stored under key.
func (m *MemStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, errors.NotFound("object", key)
	}
	return b, nil
}

// StatMimeType returns the mime type recorded for key, or "" if unknown.
func (m *MemStorage) StatMimeType(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mimes[key], nil
}
