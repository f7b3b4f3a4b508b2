package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shard-federator/internal/common/logging"
	"shard-federator/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	_ = godotenv.Load()

	if err := logging.InitGlobalLogger(); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting shard federator",
		logging.Int("cpus", runtime.NumCPU()),
	)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	topo, err := config.LoadTopology(cfg.ShardsFile)
	if err != nil {
		logging.Error("Failed to load shards file", err, logging.String("path", cfg.ShardsFile))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, topo)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	srv, err := app.RunServer()
	if err != nil {
		logging.Error("Server failed to start", err)
		app.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	stop()
	logging.Info("Shutting down...")

	httpCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		logging.Warn("Admin server forced to shutdown", logging.Err(err))
	}

	// Shutdown applies the configured grace period itself.
	if err := app.Shutdown(context.Background()); err != nil {
		logging.Error("Pools did not drain within the grace period", err)
		return err
	}

	logging.Info("Shard federator exited")
	return nil
}
