package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/topsisrun/internal/cache"
	"github.com/sawpanic/topsisrun/internal/config"
	"github.com/sawpanic/topsisrun/internal/persistence"
	"github.com/sawpanic/topsisrun/internal/persistence/postgres"
)

// resources are the optional external services named in the config
type resources struct {
	store  persistence.RunStore
	health persistence.RepositoryHealth
	cache  cache.Cache

	closers []func() error
}

// openResources connects the run store when database.enabled and, when
// withCache is set, the result cache. A Redis failure degrades to the
// in-memory cache; a database failure is returned.
func openResources(ctx context.Context, cfg *config.Config, withCache bool) (*resources, error) {
	res := &resources{}

	if cfg.Database.Enabled {
		mgr, err := postgres.NewManager(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, mgr.Close)
		res.store = persistence.NewBreakerStore("topsis_runs", mgr.Runs())
		res.health = mgr.Health()
		log.Debug().Msg("Run history enabled")
	}

	if withCache && cfg.Cache.Enabled {
		res.cache = cache.NewMemory()
		if cfg.Cache.RedisAddr != "" {
			rc, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
			if err != nil {
				log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unavailable, using in-memory cache")
			} else {
				res.cache = rc
				res.closers = append(res.closers, rc.Close)
			}
		}
	}

	return res, nil
}

// Close releases every opened connection
func (r *resources) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
