package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps the cache in process memory. Nothing survives a restart;
// it backs CACHE_BACKEND=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries Entries
	loads   int
	saves   int
}

// NewMemoryStore creates a store seeded with a copy of entries
func NewMemoryStore(entries Entries) *MemoryStore {
	if entries == nil {
		entries = Entries{}
	}
	return &MemoryStore{entries: entries.Clone()}
}

// Name implements Store
func (s *MemoryStore) Name() string { return "memory" }

// Load implements Store
func (s *MemoryStore) Load(_ context.Context) (Entries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	return s.entries.Clone(), nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, entries Entries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	s.entries = entries.Clone()
	return nil
}

// Snapshot returns a copy of the stored entries
func (s *MemoryStore) Snapshot() Entries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Clone()
}

// Loads returns how many times Load was called
func (s *MemoryStore) Loads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

// Saves returns how many times Save was called
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
