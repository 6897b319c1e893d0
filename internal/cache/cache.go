// Package cache stores resolved content props with a time-to-live.
//
// Entries are advisory: a missing or failed cache only causes regeneration,
// never wrong output. Implementations therefore swallow their own failures
// and report them as misses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// PendingTTL bounds how long an in-flight generation blocks others.
	PendingTTL = 5 * time.Minute
	// ErrorTTL is how long a failed generation is remembered.
	ErrorTTL = time.Second

	StatusPending = "pending"
	StatusError   = "error"
)

var ErrInvalidTTL = errors.New("invalid ttl")

// Entry is a cached value and the instant it stops being valid.
type Entry struct {
	Value     any
	ExpiresAt time.Time
}

// Expired reports whether the entry is no longer valid at now. An entry is
// still live at exactly ExpiresAt, matching go-cache.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache is a key-value store with per-entry expiry. Get on an expired key
// behaves exactly like Get on an absent key. Set always overwrites and
// resets the expiry to now+ttl; a ttl <= 0 removes the key.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// Sweeper is implemented by caches that can drop expired entries in bulk.
type Sweeper interface {
	Cleanup(ctx context.Context) error
}

// Marker is the transient value written while a generation is in flight or
// after it failed.
type Marker struct {
	Status    string `json:"_status"`
	Timestamp int64  `json:"_timestamp,omitempty"`
}

// PendingMarker returns a pending marker stamped with now.
func PendingMarker(now time.Time) Marker {
	return Marker{Status: StatusPending, Timestamp: now.UnixMilli()}
}

// ErrorMarker returns a marker recording a failed generation.
func ErrorMarker() Marker {
	return Marker{Status: StatusError}
}

// IsPending reports whether m is a pending marker.
func (m Marker) IsPending() bool { return m.Status == StatusPending }

// Age returns how long ago the marker was written.
func (m Marker) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-m.Timestamp) * time.Millisecond
}

// AsMarker recognises a marker in either its struct form or the map form it
// takes after a JSON round trip through a persistent backend.
func AsMarker(v any) (Marker, bool) {
	switch m := v.(type) {
	case Marker:
		return m, true
	case *Marker:
		if m == nil {
			return Marker{}, false
		}
		return *m, true
	case map[string]any:
		status, ok := m["_status"].(string)
		if !ok || (status != StatusPending && status != StatusError) {
			return Marker{}, false
		}
		marker := Marker{Status: status}
		switch ts := m["_timestamp"].(type) {
		case float64:
			marker.Timestamp = int64(ts)
		case int64:
			marker.Timestamp = ts
		case int:
			marker.Timestamp = int64(ts)
		}
		return marker, true
	default:
		return Marker{}, false
	}
}

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL parses "<integer><unit>" with unit one of s, m, h, d.
func ParseTTL(s string) (time.Duration, error) {
	match := ttlPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, s)
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTTL, s, err)
	}

	var unit time.Duration
	switch match[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// MustParseTTL is like ParseTTL but panics on a malformed string.
func MustParseTTL(s string) time.Duration {
	d, err := ParseTTL(s)
	if err != nil {
		panic(err)
	}
	return d
}
