package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/app"
	"github.com/trendai/narrative-engine/internal/archive"
	"github.com/trendai/narrative-engine/internal/platform/config"
)

func main() {
	mode := flag.String("mode", "serve", "Service mode (serve, pass)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := connectArchive(ctx, cfg, &logger)
	if db != nil {
		defer db.Close()
	}

	application := app.New(cfg, db, &logger)

	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	if err := runMode(ctx, application, *mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

// connectArchive connects to the optional archive database. The engine runs
// fully in memory without one.
func connectArchive(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *archive.DB {
	if cfg.ArchiveDSN == "" {
		logger.Info().Msg("no archive configured, running in-memory only")

		return nil
	}

	poolOpts := archive.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	db, err := archive.NewWithOptions(ctx, cfg.ArchiveDSN, poolOpts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to archive")
	}

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run archive migrations")
	}

	return db
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string) error {
	switch mode {
	case "serve":
		return application.RunServe(ctx)
	case "pass":
		return application.RunPass(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[serve|pass]", os.Args[0])

		return nil
	}
}
