package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/store"
)

// Compile-time interface checks
var (
	_ Cache   = (*DB)(nil)
	_ Sweeper = (*DB)(nil)
)

// DB is a cache persisted in the content_cache table and scoped to one baby.
// Every read and write is filtered by the bound baby ID, so instances for
// different babies never see each other's keys. Failures are logged and
// reported as misses or dropped writes.
type DB struct {
	db       *store.DB
	babyID   string
	familyID string
	userID   string
	now      func() time.Time
}

// NewDB binds a database cache to one baby. familyID and userID are stored
// on inserted rows for ownership.
func NewDB(db *store.DB, babyID, familyID, userID string) *DB {
	return &DB{
		db:       db,
		babyID:   babyID,
		familyID: familyID,
		userID:   userID,
		now:      time.Now,
	}
}

// BabyID returns the baby the cache is scoped to.
func (c *DB) BabyID() string { return c.babyID }

// Get returns the live entry for key. An expired row is deleted on read.
func (c *DB) Get(ctx context.Context, key string) (*Entry, bool) {
	var (
		raw       string
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx, c.db.Rebind(`
		SELECT value, expires_at FROM content_cache WHERE baby_id = ? AND cache_key = ?
	`), c.babyID, key).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache read failed")
		return nil, false
	}

	entry := &Entry{ExpiresAt: time.UnixMilli(expiresAt)}
	if entry.Expired(c.now()) {
		c.delete(ctx, key)
		return nil, false
	}

	if err := json.Unmarshal([]byte(raw), &entry.Value); err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache value corrupt")
		return nil, false
	}
	return entry, true
}

// Set upserts value under key with expiry now+ttl.
func (c *DB) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		c.delete(ctx, key)
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache value not serialisable")
		return
	}

	now := c.now()
	expiresAt := now.Add(ttl).UnixMilli()

	res, err := c.db.ExecContext(ctx, c.db.Rebind(`
		UPDATE content_cache SET value = ?, expires_at = ?, updated_at = ?
		WHERE baby_id = ? AND cache_key = ?
	`), string(data), expiresAt, now.UnixMilli(), c.babyID, key)
	if err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache update failed")
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return
	}

	_, err = c.db.ExecContext(ctx, c.db.Rebind(`
		INSERT INTO content_cache (id, baby_id, family_id, user_id, cache_key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), ulid.Make().String(), c.babyID, c.familyID, c.userID, key, string(data), expiresAt, now.UnixMilli())
	if err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache insert failed")
	}
}

// IsPending reports whether key currently holds a pending marker.
func (c *DB) IsPending(ctx context.Context, key string) bool {
	entry, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	marker, ok := AsMarker(entry.Value)
	return ok && marker.IsPending()
}

// Cleanup deletes all expired rows for this baby.
func (c *DB) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`
		DELETE FROM content_cache WHERE baby_id = ? AND expires_at < ?
	`), c.babyID, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("delete expired rows for baby %s: %w", c.babyID, err)
	}
	n, _ := res.RowsAffected()
	log.Debug().Str("baby_id", c.babyID).Int64("removed", n).Msg("content cache cleaned")
	return nil
}

// Clear deletes every row for this baby.
func (c *DB) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`
		DELETE FROM content_cache WHERE baby_id = ?
	`), c.babyID)
	if err != nil {
		return fmt.Errorf("clear cache for baby %s: %w", c.babyID, err)
	}
	return nil
}

func (c *DB) delete(ctx context.Context, key string) {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`
		DELETE FROM content_cache WHERE baby_id = ? AND cache_key = ?
	`), c.babyID, key)
	if err != nil {
		log.Error().Err(err).Str("baby_id", c.babyID).Str("key", key).Msg("content cache delete failed")
	}
}

// ExpiredRows sweeps expired rows for every baby in the table. Per-baby DB
// caches are created per request, so periodic cleanup runs through this
// instead.
type ExpiredRows struct {
	db  *store.DB
	now func() time.Time
}

var _ Sweeper = (*ExpiredRows)(nil)

func NewExpiredRows(db *store.DB) *ExpiredRows {
	return &ExpiredRows{db: db, now: time.Now}
}

func (s *ExpiredRows) Cleanup(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM content_cache WHERE expires_at < ?
	`), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("delete expired rows: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Debug().Int64("removed", n).Msg("expired content cache rows removed")
	return nil
}
