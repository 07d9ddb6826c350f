package pass

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/config"
	"github.com/trendai/narrative-engine/internal/platform/worker"
	"github.com/trendai/narrative-engine/internal/store"
)

// Scheduler runs passes for all live narratives on a fixed tick.
// Narratives fan out across worker slots; a per-narrative ownership token
// guarantees no two passes for the same narrative ever overlap, and one
// narrative's failure never touches another's pass.
type Scheduler struct {
	cfg    *config.Config
	store  *store.Store
	runner *Runner
	logger *zerolog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg *config.Config, st *store.Store, runner *Runner, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		store:   st,
		runner:  runner,
		logger:  logger,
		running: make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled, executing a fan-out of passes every
// tick and rolling-window eviction periodically.
func (s *Scheduler) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "pass-scheduler",
		PollInterval: s.cfg.PassInterval,
		Process:      s.tick,
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     "store-eviction",
				Interval: s.cfg.EvictionInterval,
				Run: func(_ context.Context) {
					s.store.Evict()
				},
			},
		},
		Logger: s.logger,
	})
}

// RunOnce executes a single pass for every live narrative and returns.
// Operational tooling for the pass mode.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) error {
	narratives := s.store.Narratives()
	if len(narratives) == 0 {
		return nil
	}

	slots := make(chan struct{}, s.cfg.WorkerSlots)

	var wg sync.WaitGroup

	for _, narrativeID := range narratives {
		if ctx.Err() != nil {
			break
		}

		if !s.tryAcquire(narrativeID) {
			// The next tick will pick it up.
			s.logger.Debug().Err(engerrors.ErrPassInProgress).Str("narrative", narrativeID).Msg("skipping narrative")

			continue
		}

		wg.Add(1)

		slots <- struct{}{}

		go func(narrativeID string) {
			defer wg.Done()
			defer func() { <-slots }()
			defer s.release(narrativeID)
			defer worker.RecoverPanic(s.logger, "narrative pass")

			if err := s.runner.Run(ctx, narrativeID); err != nil {
				// Absorbed at the pass boundary: logged, counted, and
				// retried on the next tick.
				s.logger.Warn().Err(err).Str("narrative", narrativeID).Msg("pass failed")
			}
		}(narrativeID)
	}

	wg.Wait()

	return nil
}

func (s *Scheduler) tryAcquire(narrativeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[narrativeID]; ok {
		return false
	}

	s.running[narrativeID] = struct{}{}

	return true
}

func (s *Scheduler) release(narrativeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, narrativeID)
}
