package fingerprint

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	timestamp time.Time
	ttl       time.Duration
}

func (e memoryEntry) fresh(now time.Time) bool {
	return now.Sub(e.timestamp) < e.ttl
}

// MemoryStore is an in-memory Store. Stale entries stay in the map until
// overwritten; only reads observe expiry.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry)}
}

// Get returns the value and true if present and fresh.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !entry.fresh(time.Now()) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set inserts or updates key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.items[key] = memoryEntry{value: value, timestamp: time.Now(), ttl: ttl}
	s.mu.Unlock()
	return nil
}

// Valid reports whether key exists and is fresh.
func (s *MemoryStore) Valid(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	return ok && entry.fresh(time.Now()), nil
}

// Size returns the current number of entries, fresh or not.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	sz := len(s.items)
	s.mu.RUnlock()
	return sz
}
