package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time)}
}

// Reserve claims the key. Returns false when it was already claimed and the
// claim has not expired.
func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.keys[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.keys[key] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether the key holds an unexpired claim.
func (s *MemoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.keys[key]
	return ok && time.Now().Before(expiry), nil
}

// Release frees the key.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
	return nil
}
