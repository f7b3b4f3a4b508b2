package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"shard-federator/internal/circuitbreaker"
	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/common/ratelimit"
	"shard-federator/internal/shard"
	"shard-federator/internal/storage/sqlshard"
)

func (app *App) initializeGuards() error {
	if app.Config.BreakerEnabled {
		maxFailures, _ := strconv.Atoi(app.Config.BreakerMaxFailures)
		timeout, _ := time.ParseDuration(app.Config.BreakerTimeout)

		cfg := circuitbreaker.DefaultConfig()
		cfg.MaxFailures = maxFailures
		cfg.Timeout = timeout
		if err := cfg.Validate(); err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid breaker settings: %v", err))
		}
		app.Breakers = circuitbreaker.NewManager(cfg, app.Logger)
		app.Logger.Info("Circuit breakers: Enabled",
			logging.Int("max_failures", maxFailures),
			logging.Duration("timeout", timeout),
		)
	}

	if app.Config.RateLimitEnabled {
		rps, _ := strconv.ParseFloat(app.Config.RateLimitRPS, 64)
		burst, _ := strconv.Atoi(app.Config.RateLimitBurst)

		limiter, err := ratelimit.New(ratelimit.Config{RequestsPerSecond: rps, BurstSize: burst, Enabled: true})
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid rate limit settings: %v", err))
		}
		app.Limiter = limiter
		app.Logger.Info("Rate Limiting: Enabled",
			logging.Field{Key: "rps", Value: rps},
			logging.Int("burst", burst),
		)
	}

	return nil
}

func (app *App) initializeShards(ctx context.Context) error {
	catalog, err := sqlshard.NewCatalog(app.Topology.Statements)
	if err != nil {
		return err
	}
	app.Catalog = catalog

	registry, err := shard.NewRegistry()
	if err != nil {
		return err
	}
	app.Registry = registry

	defaultID := app.Topology.Default
	if app.Config.DefaultShard != "" {
		defaultID = app.Config.DefaultShard
	}
	if defaultID != "" {
		if _, ok := app.Topology.Shard(defaultID); !ok {
			return errors.ConfigError(fmt.Sprintf("default shard %s is not declared", defaultID))
		}
	}

	for _, spec := range app.Topology.Shards {
		p, err := sqlshard.Open(ctx, spec.Identity, spec.Driver, spec.DSN, catalog)
		if err != nil {
			return err
		}
		app.Providers[spec.Identity] = p

		guarded := app.guard(spec.Identity, p)
		if err := registry.Register(shard.Descriptor{
			Identity: spec.Identity,
			Provider: guarded,
			PoolSize: spec.PoolSize,
		}); err != nil {
			return err
		}
		if spec.Identity == defaultID {
			app.fallback = guarded
		}

		app.Logger.Info("Shard: Connected",
			logging.String("shard", spec.Identity),
			logging.String("driver", spec.Driver),
		)
	}

	return nil
}

// guard wraps p in the shard's breaker and then the rate limiter. Throttled
// acquisitions never reach the breaker.
func (app *App) guard(identity string, p shard.HandleProvider) shard.HandleProvider {
	if app.Breakers != nil {
		p = shard.WithBreaker(p, app.Breakers.GetOrCreate(identity))
	}
	if app.Limiter != nil {
		p = shard.WithRateLimit(p, app.Limiter, identity)
	}
	return p
}
