package main

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/api"
	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/config"
	"rgehrsitz/nest/internal/preprocessor"
	"rgehrsitz/nest/internal/programs"
	"rgehrsitz/nest/internal/rules"
	"rgehrsitz/nest/internal/store"
)

// backend is the opened cache storage for the configured backend.
type backend struct {
	source   api.CacheSource
	sweepers map[string]cache.Sweeper

	memory *cache.Memory
	db     *store.DB
	redis  *redis.Client
	shared *cache.Redis
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{sweepers: make(map[string]cache.Sweeper)}

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		b.memory = cache.NewMemory()
		b.source = api.SharedCache{Cache: b.memory}
		b.sweepers["memory"] = b.memory
	case config.BackendSQLite, config.BackendPostgres:
		db, err := store.Open(cfg.Cache.Backend, cfg.Cache.DSN)
		if err != nil {
			return nil, err
		}
		caches, err := api.NewDBCaches(db, cfg.Cache.RegistrySize)
		if err != nil {
			db.Close()
			return nil, err
		}
		b.db = db
		b.source = caches
		b.sweepers["content_cache"] = cache.NewExpiredRows(db)
	case config.BackendRedis:
		client, err := cache.DialRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
		b.shared = cache.NewRedis(client, cfg.Cache.RedisPrefix)
		b.source = api.SharedCache{Cache: b.shared}
	default:
		return nil, errors.New("unknown cache backend " + cfg.Cache.Backend)
	}

	log.Info().Str("backend", cfg.Cache.Backend).Msg("cache backend opened")
	return b, nil
}

func (b *backend) Close() error {
	var errs []error
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	return errors.Join(errs...)
}

func newAIClient(cfg *config.Config) ai.Client {
	if !cfg.AI.Enabled() {
		log.Warn().Msg("OPENAI_API_KEY not set, generated props will show the error placeholder")
		return ai.Offline{}
	}
	return ai.NewOpenAI(cfg.AI.APIKey, cfg.AI.Model)
}

// loadRules returns the built-in programs followed by rules from files.
func loadRules(cfg *config.Config, client ai.Client) ([]rules.Rule, error) {
	var rs []rules.Rule
	if cfg.Rules.Builtin {
		rs = append(rs, programs.All(client)...)
	}
	if len(cfg.Rules.Files) > 0 {
		p, err := preprocessor.LoadFiles("files", cfg.Rules.Files...)
		if err != nil {
			return nil, err
		}
		rs = append(rs, p.Build()...)
	}
	log.Info().Int("rules", len(rs)).Bool("builtin", cfg.Rules.Builtin).Int("files", len(cfg.Rules.Files)).Msg("rules loaded")
	return rs, nil
}
