package archive

import (
	"context"
	"fmt"

	"github.com/trendai/narrative-engine/internal/core/domain"
)

// SaveSummary appends a published summary to the history table. One row per
// published pass; identical recomputations dedupe on (narrative, computed_at).
func (db *DB) SaveSummary(ctx context.Context, summary domain.NarrativeSummary) error {
	const q = `
		INSERT INTO narrative_summaries (
			narrative_id, risk_level, avg_trust_score, duplicate_percentage,
			bot_cluster_count, total_posts, unclassified_posts, reasons, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (narrative_id, computed_at) DO NOTHING`

	_, err := db.pool.Exec(ctx, q,
		summary.NarrativeID,
		summary.RiskLevel,
		summary.AvgTrustScore,
		summary.DuplicatePercentage,
		summary.BotClusterCount,
		summary.TotalPosts,
		summary.UnclassifiedPosts,
		summary.Reasons,
		summary.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("save summary for %s: %w", summary.NarrativeID, err)
	}

	return nil
}

// SummaryHistory returns archived summaries for a narrative, newest first.
func (db *DB) SummaryHistory(ctx context.Context, narrativeID string, limit int) ([]domain.NarrativeSummary, error) {
	const q = `
		SELECT narrative_id, risk_level, avg_trust_score, duplicate_percentage,
			bot_cluster_count, total_posts, unclassified_posts, reasons, computed_at
		FROM narrative_summaries
		WHERE narrative_id = $1
		ORDER BY computed_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, q, narrativeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query summary history for %s: %w", narrativeID, err)
	}
	defer rows.Close()

	var out []domain.NarrativeSummary

	for rows.Next() {
		var s domain.NarrativeSummary
		if err := rows.Scan(
			&s.NarrativeID, &s.RiskLevel, &s.AvgTrustScore, &s.DuplicatePercentage,
			&s.BotClusterCount, &s.TotalPosts, &s.UnclassifiedPosts, &s.Reasons, &s.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return out, nil
}
