package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tenantgraph/internal/bootstrap"
	"github.com/gosuda/tenantgraph/internal/config"
	"github.com/gosuda/tenantgraph/internal/store/postgres"
	redisstore "github.com/gosuda/tenantgraph/internal/store/redis"
	"github.com/gosuda/tenantgraph/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("TG_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("TG_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL (runs migrations).
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis: replication target and user feed.
	rds, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rds.Close()

	// Create the bootstrap service.
	svc := bootstrap.NewService(
		store,
		store.Tenants(),
		store.Mappings(),
		store.Workspaces(),
		store.Groups(),
		store.Principals(),
		rds,
		cfg.Replication.Environment,
		cfg.Replication.UserDomain,
	)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := worker.New(svc, rds, cfg.Worker.Channel, cfg.Worker.BatchSize, cfg.Worker.FlushInterval)

	log.Info().
		Str("channel", cfg.Worker.Channel).
		Str("environment", cfg.Replication.Environment).
		Msg("starting user feed worker")

	if err := w.Run(ctx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
