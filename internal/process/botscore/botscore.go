// Package botscore computes per-account bot-likelihood scores from
// behavioral features and cluster membership. Scoring is a fixed linear
// weighting: identical inputs always yield identical scores.
package botscore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/observability"
)

// Scorer holds the configured feature weights and population baseline.
// Weights are configuration, not code: operators tune them via
// SCORING_WEIGHTS without touching scoring logic.
type Scorer struct {
	weights     map[string]float64
	weightTotal float64
	baseline    float64
	parallelism int
	logger      *zerolog.Logger
}

// New creates a scorer. Weights must be non-empty with a positive total;
// config validation guarantees that upstream.
func New(weights map[string]float64, baselinePostsPerHour float64, parallelism int, logger *zerolog.Logger) *Scorer {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	if parallelism < 1 {
		parallelism = 1
	}

	return &Scorer{
		weights:     weights,
		weightTotal: total,
		baseline:    baselinePostsPerHour,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Score computes the bot score for a single account. An account with no
// posts in the window fails with ErrInsufficientData: omitting it beats
// fabricating a default score that would pollute the narrative average.
func (s *Scorer) Score(account domain.Account, posts []domain.Post, clusterSizeByPost map[string]int, computedAt time.Time) (domain.BotScore, error) {
	if len(posts) == 0 {
		return domain.BotScore{}, fmt.Errorf("account %s: %w", account.ID, engerrors.ErrInsufficientData)
	}

	features := featureValues(account, posts, clusterSizeByPost, s.baseline)

	// Float addition is order-sensitive, so the summation order must be
	// fixed for identical inputs to yield identical scores.
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}

	sort.Strings(names)

	weighted := 0.0

	for _, name := range names {
		weighted += features[name] * s.weights[name]
	}

	score := 100 * weighted / s.weightTotal
	if score < 0 {
		score = 0
	}

	if score > 100 {
		score = 100
	}

	return domain.BotScore{
		AccountID:            account.ID,
		Score:                score,
		ComputedAt:           computedAt,
		ContributingFeatures: features,
	}, nil
}

// ScoreAll scores every account with posts in the window, fanning out over
// the configured parallelism. Inputs are immutable snapshots, so workers
// share them without locking. Output is sorted by account ID for
// reproducible downstream aggregation. Accounts lacking posts are skipped
// and logged, never defaulted.
func (s *Scorer) ScoreAll(ctx context.Context, accounts map[string]domain.Account, postsByAccount map[string][]domain.Post, clusterSizeByPost map[string]int, computedAt time.Time) ([]domain.BotScore, error) {
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		scores = make([]domain.BotScore, 0, len(ids))
	)

	sem := make(chan struct{}, s.parallelism)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)

		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			score, err := s.Score(accounts[id], postsByAccount[id], clusterSizeByPost, computedAt)
			if err != nil {
				if engerrors.Is(err, engerrors.ErrInsufficientData) {
					observability.AccountsSkipped.Inc()

					if s.logger != nil {
						s.logger.Debug().Str("account_id", id).Msg("skipping account with no posts in window")
					}

					return
				}

				return
			}

			mu.Lock()
			scores = append(scores, score)
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scoring pass: %w", err)
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].AccountID < scores[j].AccountID
	})

	return scores, nil
}
