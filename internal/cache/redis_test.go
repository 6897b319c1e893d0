package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps values in a map and ignores Redis-side expiry, so the
// envelope expiry is what the tests exercise.
type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failing error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failing != nil {
		return redis.NewStringResult("", f.failing)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failing != nil {
		return redis.NewStatusResult("", f.failing)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func TestRedis_RoundTripUsesPrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedis(fake, "nest:baby-1:")

	c.Set(ctx, "tip", "hello", time.Hour)
	assert.Contains(t, fake.data, "nest:baby-1:tip")
	assert.Equal(t, time.Hour, fake.ttls["nest:baby-1:tip"])

	entry, ok := c.Get(ctx, "tip")
	require.True(t, ok)
	assert.Equal(t, "hello", entry.Value)
}

func TestRedis_ExpiredEnvelopeIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewRedis(newFakeRedis(), "p:")

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set(ctx, "k", "v", time.Second)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_MarkerSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewRedis(newFakeRedis(), "p:")
	now := time.Now()

	c.Set(ctx, "k", PendingMarker(now), PendingTTL)
	entry, ok := c.Get(ctx, "k")
	require.True(t, ok)

	marker, ok := AsMarker(entry.Value)
	require.True(t, ok)
	assert.True(t, marker.IsPending())
	assert.Equal(t, now.UnixMilli(), marker.Timestamp)
}

func TestRedis_FailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.failing = errors.New("connection refused")
	c := NewRedis(fake, "p:")

	assert.NotPanics(t, func() { c.Set(ctx, "k", "v", time.Hour) })
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_ClearOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	mine := NewRedis(fake, "baby-1:")
	theirs := NewRedis(fake, "baby-2:")

	mine.Set(ctx, "a", 1, time.Hour)
	mine.Set(ctx, "b", 2, time.Hour)
	theirs.Set(ctx, "a", 3, time.Hour)

	require.NoError(t, mine.Clear(ctx))
	_, ok := mine.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = theirs.Get(ctx, "a")
	assert.True(t, ok)
}

func TestRedis_NonPositiveTTLDeletes(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedis(fake, "p:")

	c.Set(ctx, "k", "v", time.Hour)
	c.Set(ctx, "k", "v", 0)
	assert.NotContains(t, fake.data, "p:k")
}
