package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local store for single-instance runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{keys: map[string]time.Time{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expires) {
		delete(s.keys, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		s.keys[key] = s.now().Add(s.ttl)
	}
	return nil
}
