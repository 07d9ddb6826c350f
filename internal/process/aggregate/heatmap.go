package aggregate

import (
	"github.com/trendai/narrative-engine/internal/core/domain"
)

// HeatmapRow derives the dashboard heatmap dimensions for one narrative.
// Every dimension is computed from real pipeline output: bot activity from
// the scored average, duplicate posts from the cluster share, viral spread
// from normalized graph density.
func HeatmapRow(summary domain.NarrativeSummary, graph domain.SpreadGraph) domain.HeatmapRow {
	return domain.HeatmapRow{
		NarrativeID:    summary.NarrativeID,
		BotActivity:    clampScore(100 - summary.AvgTrustScore),
		DuplicatePosts: clampScore(summary.DuplicatePercentage),
		ViralSpread:    clampScore(graph.Summary.Density * 100),
	}
}
