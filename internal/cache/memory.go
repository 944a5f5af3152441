package cache

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// MemoryStore is the in-process fallback used when no Redis host is
// configured. Expiry is lazy: records are dropped when read after their
// deadline. Safe for concurrent use within one process only; there is
// no cross-process visibility, which is an accepted limitation.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		s.entries[key] = &memoryEntry{value: "1"}
		return 1, nil
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		e.expiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	}
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return TTLAbsent, nil
	}
	now := time.Now()
	if e.expired(now) {
		delete(s.entries, key)
		return TTLAbsent, nil
	}
	if e.expiresAt.IsZero() {
		return TTLNoExpiry, nil
	}
	return int64(math.Ceil(e.expiresAt.Sub(now).Seconds())), nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
