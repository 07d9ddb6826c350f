// Package cluster groups posts within one narrative into near-duplicate
// clusters by shingled token-set Jaccard similarity. Clustering is
// single-threaded per narrative: centroids must be seen in arrival order
// so tie-breaks stay deterministic across reruns.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
)

// Unclassified marks posts whose text is empty after normalization.
// They never join a cluster and never spuriously inflate duplicate counts.
const Unclassified = "unclassified"

// Clusterer assigns posts to near-duplicate clusters.
type Clusterer struct {
	threshold    float64
	shingleSize  int
	maxActive    int
	activeWindow time.Duration
	logger       *zerolog.Logger
}

// Result is the full clustering output for one narrative window.
type Result struct {
	Clusters    []domain.DuplicateCluster
	Assignments map[string]string // post ID -> cluster ID, or Unclassified
	// Similarities records the similarity of each post to its cluster
	// centroid. Founding posts score 1. Used for repost edge weights.
	Similarities map[string]float64
}

type centroid struct {
	index       int
	clusterID   string
	text        string
	shingles    map[string]struct{}
	lastTouched time.Time
	members     []string
	accounts    []string
	accountSeen map[string]struct{}
}

// New creates a clusterer. activeWindow bounds how long an untouched
// centroid stays in the active comparison set, keeping each pass near-linear.
func New(threshold float64, shingleSize, maxActive int, activeWindow time.Duration, logger *zerolog.Logger) *Clusterer {
	return &Clusterer{
		threshold:    threshold,
		shingleSize:  shingleSize,
		maxActive:    maxActive,
		activeWindow: activeWindow,
		logger:       logger,
	}
}

// Run clusters posts in arrival order. Posts must be sorted by timestamp
// ascending; the caller's snapshot guarantees that. ctx is checked between
// posts so an aborted pass exits promptly.
func (c *Clusterer) Run(ctx context.Context, narrativeID string, posts []domain.Post) (Result, error) {
	result := Result{
		Assignments:  make(map[string]string, len(posts)),
		Similarities: make(map[string]float64, len(posts)),
	}

	var (
		active []*centroid
		all    []*centroid
		seq    int
	)

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("clustering %s: %w", narrativeID, err)
		}

		normalized := Normalize(post.Text)
		if normalized == "" {
			result.Assignments[post.ID] = Unclassified

			continue
		}

		shingles := Shingles(normalized, c.shingleSize)
		active = c.evictStale(active, post.Timestamp)

		best := c.match(active, shingles)
		if best == nil {
			cent := &centroid{
				index:       seq,
				clusterID:   fmt.Sprintf("%s-c%04d", narrativeID, seq),
				text:        normalized,
				shingles:    shingles,
				lastTouched: post.Timestamp,
				accountSeen: make(map[string]struct{}),
			}
			seq++

			cent.addMember(post)
			all = append(all, cent)
			active = append(active, cent)
			active = c.capActive(active)

			result.Assignments[post.ID] = cent.clusterID
			result.Similarities[post.ID] = 1

			continue
		}

		best.addMember(post)
		best.lastTouched = post.Timestamp
		result.Assignments[post.ID] = best.clusterID
		result.Similarities[post.ID] = Jaccard(shingles, best.shingles)
	}

	for _, cent := range all {
		result.Clusters = append(result.Clusters, domain.DuplicateCluster{
			ClusterID:           cent.clusterID,
			NarrativeID:         narrativeID,
			MemberPostIDs:       cent.members,
			MemberAccountIDs:    cent.accounts,
			CentroidText:        cent.text,
			SimilarityThreshold: c.threshold,
		})
	}

	return result, nil
}

// match returns the active centroid with the highest similarity at or above
// the threshold. Exact similarity ties resolve to the lowest cluster index,
// which is the lowest cluster ID: IDs are minted in creation order.
func (c *Clusterer) match(active []*centroid, shingles map[string]struct{}) *centroid {
	var (
		best    *centroid
		bestSim float64
	)

	for _, cent := range active {
		sim := Jaccard(shingles, cent.shingles)
		if sim < c.threshold {
			continue
		}

		if best == nil || sim > bestSim || (sim == bestSim && cent.index < best.index) {
			best = cent
			bestSim = sim
		}
	}

	return best
}

// evictStale drops centroids untouched for the active window, relative to
// the current post's timestamp. They remain in the output; they just stop
// being compared against.
func (c *Clusterer) evictStale(active []*centroid, now time.Time) []*centroid {
	if c.activeWindow <= 0 {
		return active
	}

	cutoff := now.Add(-c.activeWindow)
	kept := active[:0]

	for _, cent := range active {
		if cent.lastTouched.Before(cutoff) {
			continue
		}

		kept = append(kept, cent)
	}

	return kept
}

// capActive bounds the comparison set by evicting the least recently
// touched centroids.
func (c *Clusterer) capActive(active []*centroid) []*centroid {
	if c.maxActive <= 0 || len(active) <= c.maxActive {
		return active
	}

	oldest := 0

	for i, cent := range active {
		if cent.lastTouched.Before(active[oldest].lastTouched) {
			oldest = i
		}
	}

	if c.logger != nil {
		c.logger.Debug().Str("cluster_id", active[oldest].clusterID).Msg("evicting centroid over active cap")
	}

	return append(active[:oldest], active[oldest+1:]...)
}

func (cent *centroid) addMember(post domain.Post) {
	cent.members = append(cent.members, post.ID)

	if _, ok := cent.accountSeen[post.AccountID]; !ok {
		cent.accountSeen[post.AccountID] = struct{}{}
		cent.accounts = append(cent.accounts, post.AccountID)
	}
}

// DuplicateClusters filters the result to clusters that actually represent
// duplication: size >= 2.
func (r *Result) DuplicateClusters() []domain.DuplicateCluster {
	out := make([]domain.DuplicateCluster, 0, len(r.Clusters))

	for _, cl := range r.Clusters {
		if cl.Size() >= 2 {
			out = append(out, cl)
		}
	}

	return out
}
