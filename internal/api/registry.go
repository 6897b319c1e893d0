package api

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/store"
)

// Identity names the baby a request is for and who is asking.
type Identity struct {
	BabyID   string
	FamilyID string
	UserID   string
}

func (id Identity) key() string {
	return id.BabyID + "|" + id.FamilyID + "|" + id.UserID
}

// CacheSource hands out the cache a request resolves props against.
type CacheSource interface {
	For(id Identity) cache.Cache
}

// DBCaches keeps recently used per-baby database caches. Evicted entries
// hold no resources beyond the shared pool, so eviction needs no cleanup.
type DBCaches struct {
	db     *store.DB
	caches *lru.Cache[string, *cache.DB]
}

// NewDBCaches creates a registry holding at most size caches.
func NewDBCaches(db *store.DB, size int) (*DBCaches, error) {
	caches, err := lru.New[string, *cache.DB](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache registry: %w", err)
	}
	return &DBCaches{db: db, caches: caches}, nil
}

// For returns the cache bound to id, creating it on first use.
func (r *DBCaches) For(id Identity) cache.Cache {
	if c, ok := r.caches.Get(id.key()); ok {
		return c
	}
	c := cache.NewDB(r.db, id.BabyID, id.FamilyID, id.UserID)
	r.caches.Add(id.key(), c)
	return c
}

// Len reports how many caches are held.
func (r *DBCaches) Len() int {
	return r.caches.Len()
}

// SharedCache serves every baby from one cache, prefixing keys with the
// baby ID so generated text is never shown to another family.
type SharedCache struct {
	Cache cache.Cache
}

func (s SharedCache) For(id Identity) cache.Cache {
	return babyScoped{inner: s.Cache, prefix: "baby:" + id.BabyID + ":"}
}

type babyScoped struct {
	inner  cache.Cache
	prefix string
}

func (b babyScoped) Get(ctx context.Context, key string) (*cache.Entry, bool) {
	return b.inner.Get(ctx, b.prefix+key)
}

func (b babyScoped) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	b.inner.Set(ctx, b.prefix+key, value, ttl)
}
