// Package pass orchestrates pipeline passes: clustering, scoring, graph
// building, and aggregation over a point-in-time snapshot of one
// narrative's post window, finishing with an atomic publish of the result.
package pass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/config"
	"github.com/trendai/narrative-engine/internal/platform/observability"
	"github.com/trendai/narrative-engine/internal/process/aggregate"
	"github.com/trendai/narrative-engine/internal/process/botscore"
	"github.com/trendai/narrative-engine/internal/process/cluster"
	"github.com/trendai/narrative-engine/internal/process/spreadgraph"
	"github.com/trendai/narrative-engine/internal/store"
)

const logFieldCorrelationID = "correlation_id"

// SummaryArchiver persists published summaries outside the hot path.
// Write-through is best-effort: archive failures never fail a pass.
type SummaryArchiver interface {
	SaveSummary(ctx context.Context, summary domain.NarrativeSummary) error
}

// Runner executes complete pipeline passes for single narratives.
type Runner struct {
	cfg       *config.Config
	store     *store.Store
	clusterer *cluster.Clusterer
	scorer    *botscore.Scorer
	registry  *Registry
	archiver  SummaryArchiver
	logger    *zerolog.Logger
}

// NewRunner wires a runner. archiver may be nil.
func NewRunner(cfg *config.Config, st *store.Store, registry *Registry, archiver SummaryArchiver, logger *zerolog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     st,
		clusterer: cluster.New(cfg.SimilarityThreshold, cfg.ShingleSize, cfg.MaxActiveClusters, cfg.RollingWindow, logger),
		scorer:    botscore.New(cfg.Weights(), cfg.BaselinePostsPerHour, cfg.ScoringParallelism, logger),
		registry:  registry,
		archiver:  archiver,
		logger:    logger,
	}
}

// Run executes one pass for a narrative under the configured deadline.
// A pass that times out publishes nothing: readers keep the previous
// summary and the next schedule tick retries.
func (r *Runner) Run(ctx context.Context, narrativeID string) error {
	correlationID := uuid.New().String()
	logger := r.logger.With().Str(logFieldCorrelationID, correlationID).Str("narrative", narrativeID).Logger()

	passCtx, cancel := context.WithTimeout(ctx, r.cfg.PassDeadline)
	defer cancel()

	started := time.Now()

	err := r.runPass(passCtx, narrativeID, &logger)
	duration := time.Since(started)

	switch {
	case err == nil:
		observability.PassesCompleted.WithLabelValues("ok").Inc()
		observability.PassDurationSeconds.Observe(duration.Seconds())
		logger.Info().Dur("duration", duration).Msg("pass completed")

		return nil
	case errors.Is(err, context.DeadlineExceeded):
		observability.PassesCompleted.WithLabelValues("timeout").Inc()
		logger.Warn().Dur("duration", duration).Msg("pass aborted at deadline, keeping previous summary")

		return fmt.Errorf("%w: narrative %s", engerrors.ErrPassTimeout, narrativeID)
	default:
		observability.PassesCompleted.WithLabelValues("error").Inc()

		return fmt.Errorf("pass for %s: %w", narrativeID, err)
	}
}

func (r *Runner) runPass(ctx context.Context, narrativeID string, logger *zerolog.Logger) error {
	snap := r.store.Window(narrativeID, r.cfg.RollingWindow)
	if len(snap.Posts) == 0 {
		logger.Debug().Msg("empty window, skipping pass")

		return nil
	}

	// Derived from snapshot content, not wall clock: rerunning a pass over
	// an unchanged window must reproduce the summary exactly.
	computedAt := snap.Posts[len(snap.Posts)-1].Timestamp

	clusters, err := r.clusterer.Run(ctx, narrativeID, snap.Posts)
	if err != nil {
		return err
	}

	observability.ClustersPerPass.Observe(float64(len(clusters.Clusters)))

	scores, err := r.scoreSnapshot(ctx, snap, clusters, computedAt)
	if err != nil {
		return err
	}

	graph, err := spreadgraph.New().Build(ctx, narrativeID, snap.Posts, snap.Accounts, clusters, scores)
	if err != nil {
		return err
	}

	observability.GraphEdges.Observe(float64(len(graph.Edges)))

	summary := aggregate.Summarize(narrativeID, len(snap.Posts), clusters, scores, graph, computedAt)

	result := &Result{
		Summary:    summary,
		Graph:      graph,
		Clusters:   clusters.DuplicateClusters(),
		Trust:      aggregate.TrustEntries(scores, snap.Accounts),
		Suspicious: aggregate.SuspiciousPosts(snap.Posts, clusters, scores),
		Heatmap:    aggregate.HeatmapRow(summary, graph),
	}

	// Final cancellation check before publication: an aborted pass must
	// leave the previously published result untouched.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pre-publish: %w", err)
	}

	r.registry.Publish(narrativeID, result)
	r.archiveSummary(ctx, summary, logger)

	return nil
}

func (r *Runner) scoreSnapshot(ctx context.Context, snap store.Snapshot, clusters cluster.Result, computedAt time.Time) ([]domain.BotScore, error) {
	sizeByCluster := make(map[string]int, len(clusters.Clusters))
	for _, cl := range clusters.Clusters {
		sizeByCluster[cl.ClusterID] = cl.Size()
	}

	clusterSizeByPost := make(map[string]int, len(clusters.Assignments))

	for postID, clusterID := range clusters.Assignments {
		if clusterID == cluster.Unclassified {
			continue
		}

		clusterSizeByPost[postID] = sizeByCluster[clusterID]
	}

	postsByAccount := make(map[string][]domain.Post)
	for _, post := range snap.Posts {
		postsByAccount[post.AccountID] = append(postsByAccount[post.AccountID], post)
	}

	return r.scorer.ScoreAll(ctx, snap.Accounts, postsByAccount, clusterSizeByPost, computedAt)
}

func (r *Runner) archiveSummary(ctx context.Context, summary domain.NarrativeSummary, logger *zerolog.Logger) {
	if r.archiver == nil {
		return
	}

	if err := r.archiver.SaveSummary(ctx, summary); err != nil {
		logger.Warn().Err(err).Msg("summary archive write failed")
		observability.ArchiveWrites.WithLabelValues("summary", "error").Inc()

		return
	}

	observability.ArchiveWrites.WithLabelValues("summary", "ok").Inc()
}
