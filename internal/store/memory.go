package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Used by tests and by deployments that
// accept losing state on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = rec.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, prefix string) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record)
	for key, rec := range s.records {
		if suffix, ok := strings.CutPrefix(key, prefix); ok {
			out[suffix] = rec.Clone()
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
