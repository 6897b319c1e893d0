package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Compile-time interface checks
var (
	_ Cache   = (*Memory)(nil)
	_ Sweeper = (*Memory)(nil)
)

// Memory is a process-local cache. Expired entries are hidden on read and
// removed by Cleanup; it starts no background goroutine of its own, so the
// owner decides when sweeps run (see worker.Sweeper).
type Memory struct {
	items *gocache.Cache
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	// A zero cleanup interval disables go-cache's own janitor.
	return &Memory{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the live entry for key.
func (m *Memory) Get(_ context.Context, key string) (*Entry, bool) {
	v, exp, ok := m.items.GetWithExpiration(key)
	if !ok {
		return nil, false
	}
	return &Entry{Value: v, ExpiresAt: exp}, true
}

// Set stores value under key until now+ttl.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		m.items.Delete(key)
		return
	}
	m.items.Set(key, value, ttl)
}

// Cleanup removes all expired entries.
func (m *Memory) Cleanup(_ context.Context) error {
	before := m.items.ItemCount()
	m.items.DeleteExpired()
	log.Debug().Int("before", before).Int("after", m.items.ItemCount()).Msg("memory cache swept")
	return nil
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.items.Flush()
}

// Size returns the number of stored entries, including expired ones not yet
// swept.
func (m *Memory) Size() int {
	return m.items.ItemCount()
}
