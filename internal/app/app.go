// Package app assembles the federator from its configuration.
package app

import (
	"context"

	"shard-federator/internal/circuitbreaker"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/common/ratelimit"
	"shard-federator/internal/config"
	"shard-federator/internal/executor"
	"shard-federator/internal/federation"
	"shard-federator/internal/redis"
	"shard-federator/internal/routing"
	"shard-federator/internal/shard"
	"shard-federator/internal/storage/sqlshard"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Topology    *config.Topology
	Catalog     *sqlshard.Catalog
	Registry    *shard.Registry
	Providers   map[string]*sqlshard.Provider
	Breakers    *circuitbreaker.Manager
	Limiter     *ratelimit.Limiter
	RedisClient *redis.Client
	Template    *federation.Template
	Logger      logging.Logger

	auditor  federation.Auditor
	fallback shard.HandleProvider
}

// New opens every shard in topo and builds the template over them
func New(ctx context.Context, cfg *config.Config, topo *config.Topology) (*App, error) {
	app := &App{
		Config:    cfg,
		Topology:  topo,
		Providers: make(map[string]*sqlshard.Provider),
		Logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeGuards(); err != nil {
		return nil, err
	}

	if err := app.initializeShards(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeAudit(); err != nil {
		app.Logger.Warn("Audit initialization failed, continuing without Redis audit",
			logging.Err(err))
	}

	if err := app.initializeTemplate(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeTemplate() error {
	router, err := app.Topology.Router()
	if err != nil {
		return err
	}
	if router != nil && app.Config.CacheTTL() > 0 {
		router = routing.NewCachedRouter(router, app.Config.CacheTTL())
		app.Logger.Info("Route cache: Enabled", logging.Duration("ttl", app.Config.CacheTTL()))
	}

	manager := executor.NewManager(app.Registry,
		executor.WithShutdownGrace(app.Config.Grace()),
		executor.WithManagerLogger(app.Logger),
	)

	opts := []federation.Option{
		federation.WithRegistry(app.Registry),
		federation.WithManager(manager),
		federation.WithCatalog(app.Catalog),
		federation.WithLogger(logging.GetGlobalLogger()),
	}
	if router != nil {
		opts = append(opts, federation.WithRouter(router))
	}
	if app.fallback != nil {
		opts = append(opts, federation.WithDefault(app.fallback))
	}
	if app.auditor != nil {
		opts = append(opts, federation.WithAuditor(app.auditor))
	}

	tmpl, err := federation.New(opts...)
	if err != nil {
		return err
	}
	app.Template = tmpl

	app.Logger.Info("Federation ready",
		logging.Int("shards", app.Registry.Len()),
		logging.Field{Key: "routing", Value: tmpl.RoutingEnabled()},
		logging.Int("statements", len(app.Catalog.Names())),
	)
	return nil
}

// Shutdown disposes the executor pools, waiting up to the grace period
func (app *App) Shutdown(ctx context.Context) error {
	if app.Template == nil {
		return nil
	}
	return app.Template.Close(ctx)
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	for id, p := range app.Providers {
		if err := p.Close(); err != nil {
			app.Logger.Warn("Failed to close shard", logging.String("shard", id), logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
