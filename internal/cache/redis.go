package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Compile-time interface check
var _ Cache = (*Redis)(nil)

// RedisClient is the subset of the go-redis client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Redis is a cache shared between processes. Keys are namespaced by prefix
// and expire natively in Redis.
type Redis struct {
	client RedisClient
	prefix string
	now    func() time.Time
}

type redisEnvelope struct {
	Value     json.RawMessage `json:"v"`
	ExpiresAt int64           `json:"exp"`
}

// NewRedis wraps client; every key is stored as prefix+key.
func NewRedis(client RedisClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

// DialRedis parses a redis:// URL and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache read failed")
		return nil, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache value corrupt")
		return nil, false
	}

	entry := &Entry{ExpiresAt: time.UnixMilli(env.ExpiresAt)}
	if entry.Expired(r.now()) {
		return nil, false
	}
	if err := json.Unmarshal(env.Value, &entry.Value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache value corrupt")
		return nil, false
	}
	return entry, true
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("redis cache delete failed")
		}
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache value not serialisable")
		return
	}
	env, err := json.Marshal(redisEnvelope{Value: data, ExpiresAt: r.now().Add(ttl).UnixMilli()})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache value not serialisable")
		return
	}

	if err := r.client.Set(ctx, r.prefix+key, env, ttl).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("redis cache write failed")
	}
}

// Clear deletes every key under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan %q: %w", r.prefix, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
