package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// MemoryStore keeps blobs in memory. It is safe for concurrent use.
type MemoryStore struct {
	idKeys
	mu    sync.RWMutex
	blobs map[id.ID][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[id.ID][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key id.ID) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, notFound(key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Put(_ context.Context, key id.ID, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

// Link shares the stored bytes; they are never mutated after Put.
func (m *MemoryStore) Link(_ context.Context, from, to id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[from]
	if !ok {
		return notFound(from)
	}
	m.blobs[to] = data
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return notFound(key)
	}
	delete(m.blobs, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Compile-time check that MemoryStore implements dms.BlobStore
var _ dms.BlobStore = (*MemoryStore)(nil)
