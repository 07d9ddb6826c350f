// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// the operational modes:
//
//   - Serve mode: HTTP ingestion and query API plus the scheduled
//     pipeline of clustering, scoring, graph building, and aggregation
//   - Pass mode: a single pipeline pass over every live narrative, then exit
//
// The health and metrics server runs in both modes.
package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/archive"
	"github.com/trendai/narrative-engine/internal/ingest"
	"github.com/trendai/narrative-engine/internal/platform/config"
	"github.com/trendai/narrative-engine/internal/platform/observability"
	"github.com/trendai/narrative-engine/internal/process/pass"
	"github.com/trendai/narrative-engine/internal/query"
	"github.com/trendai/narrative-engine/internal/store"
)

// App holds the application dependencies and provides methods to run
// the operational modes.
type App struct {
	cfg    *config.Config
	db     *archive.DB
	logger *zerolog.Logger

	store     *store.Store
	registry  *pass.Registry
	scheduler *pass.Scheduler
}

// New creates an App. db may be nil when no archive is configured.
func New(cfg *config.Config, db *archive.DB, logger *zerolog.Logger) *App {
	st := store.New(cfg.RollingWindow, cfg.ClockSkewTolerance, logger)
	registry := pass.NewRegistry()

	var archiver pass.SummaryArchiver
	if db != nil {
		archiver = db
	}

	runner := pass.NewRunner(cfg, st, registry, archiver, logger)

	return &App{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		store:     st,
		registry:  registry,
		scheduler: pass.NewScheduler(cfg, st, runner, logger),
	}
}

// StartHealthServer starts the HTTP server hosting health checks, metrics,
// and the engine API. Blocks until ctx is canceled.
func (a *App) StartHealthServer(ctx context.Context) error {
	var pinger observability.Pinger
	if a.db != nil {
		pinger = a.db
	}

	srv := observability.NewServer(pinger, a.cfg.HealthPort, a.apiHandler(), a.logger)

	return srv.Start(ctx)
}

func (a *App) apiHandler() http.Handler {
	var postArchiver ingest.PostArchiver
	if a.db != nil {
		postArchiver = a.db
	}

	ingestHandler := ingest.NewHandler(
		a.store,
		postArchiver,
		a.cfg.IngestRateLimitRPS,
		a.cfg.IngestBurst,
		a.cfg.IngestMaxBatch,
		a.logger,
	)

	var historian query.SummaryHistorian
	if a.db != nil {
		historian = a.db
	}

	return query.NewServer(a.registry, ingestHandler, historian, a.logger).Handler()
}

// RunServe runs the pass scheduler until ctx is canceled. The HTTP API is
// served by the health server started alongside.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().
		Dur("pass_interval", a.cfg.PassInterval).
		Dur("rolling_window", a.cfg.RollingWindow).
		Int("worker_slots", a.cfg.WorkerSlots).
		Msg("starting narrative engine")

	return a.scheduler.Run(ctx)
}

// RunPass executes one pass for every live narrative and returns.
func (a *App) RunPass(ctx context.Context) error {
	return a.scheduler.RunOnce(ctx)
}
