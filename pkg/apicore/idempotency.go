package apicore

import (
	"sync"
	"time"
)

// IdempotencyStore keeps create responses by key so a retried request gets the
// original response instead of a second record.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]cachedResponse
	ttl     time.Duration
	now     func() time.Time
}

type cachedResponse struct {
	status   int
	body     []byte
	storedAt time.Time
}

// NewIdempotencyStore creates a store whose entries expire after ttl.
// A zero ttl keeps entries until Reset.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]cachedResponse),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup returns the response stored for key. An expired entry is evicted.
func (s *IdempotencyStore) Lookup(key string) (status int, body []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, nil, false
	}
	if s.expired(e, s.now()) {
		delete(s.entries, key)
		return 0, nil, false
	}
	return e.status, e.body, true
}

// Remember stores a response for key and evicts every expired entry.
func (s *IdempotencyStore) Remember(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = cachedResponse{status: status, body: body, storedAt: now}
}

func (s *IdempotencyStore) expired(e cachedResponse, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.storedAt) > s.ttl
}

// Len returns the number of stored entries, expired ones included until evicted.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops every entry.
func (s *IdempotencyStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}
