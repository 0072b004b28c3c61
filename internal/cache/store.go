// Package cache provides the in-memory query cache the coordination layer
// invalidates on reconnect. It mirrors the shape of the app's query cache:
// values keyed by query key, refetched by screens on miss.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL bounds how long a cached query result is served without a
// refetch even when no invalidation arrives.
const DefaultTTL = 5 * time.Minute

type item struct {
	value    any
	storedAt time.Time
}

// Store is a TTL key/value cache safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	log     zerolog.Logger
	entries map[string]item
	ttl     time.Duration
	now     func() time.Time
}

// New creates an empty store. A non-positive ttl falls back to DefaultTTL.
func New(log zerolog.Logger, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		log:     log.With().Str("component", "cache").Logger(),
		entries: make(map[string]item),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false when absent or expired.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	it, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.now().Sub(it.storedAt) > s.ttl {
		s.mu.Lock()
		// A Set may have refreshed the entry between the locks; only
		// evict the item this read found expired.
		if cur, ok := s.entries[key]; ok && cur.storedAt.Equal(it.storedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return it.value, true
}

// Set stores a value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.entries[key] = item{value: value, storedAt: s.now()}
	s.mu.Unlock()
}

// Invalidate drops the given keys. Missing keys are ignored.
func (s *Store) Invalidate(keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	s.log.Debug().Strs("keys", keys).Msg("cache keys invalidated")
}

// InvalidatePrefix drops every key with the given prefix and returns how
// many were removed.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// Flush drops every entry. Used at the session boundary.
func (s *Store) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]item)
	s.mu.Unlock()
	s.log.Debug().Msg("cache flushed")
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
