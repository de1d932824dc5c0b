package session

import (
	"context"
	"sync"
)

// MemoryStore keeps session state in process memory.
// It is the default backend and the one used by tests.
type MemoryStore struct {
	notifier
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.notify(Change{Key: key, Value: value})
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.values, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.notify(Change{Key: k, Deleted: true})
	}
	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()

	s.notify(Change{Cleared: true})
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

var _ Store = (*MemoryStore)(nil)
