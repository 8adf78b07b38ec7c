// Package memory provides an in-process CacheStore for deployments that run
// without a database. Entries survive process lifetime only, which is still
// enough to ride out source outages between polls.
package memory

import (
	"context"
	"sync"
	"time"

	"threatwatch/internal/repository"
	"threatwatch/pkg/clock"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// CacheStore is a mutex-guarded map with per-key expiry.
type CacheStore struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]entry
}

// NewCacheStore creates an empty in-memory store. clk defaults to the system
// clock when nil.
func NewCacheStore(clk clock.Clock) repository.CacheStore {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	return &CacheStore{
		clock:   clk,
		entries: make(map[string]entry),
	}
}

// Get returns the stored value, or (nil, nil) when the key is absent or
// expired. Expired entries are removed on read.
func (s *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	return e.value, nil
}

// Set stores value under key. A zero ttl means the entry never expires.
func (s *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

// Purge removes expired entries and reports how many were dropped. It mirrors
// the database adapter so the worker can run one maintenance loop for either.
func (s *CacheStore) Purge(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var removed int64
	for key, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
