package botscore

import (
	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/platform/config"
)

// Cluster membership only counts toward bot behavior once a cluster is
// large enough to suggest coordination, not coincidence.
const coordinatedClusterSize = 3

// Feature scale constants. Each feature maps raw behavior into [0,1].
const (
	// rateAnomalyCeiling: posting at this multiple of the population
	// baseline saturates the rate feature.
	rateAnomalyCeiling = 10.0

	// accountAgeHorizonDays: accounts older than this contribute zero
	// age penalty.
	accountAgeHorizonDays = 365.0

	// engagementMismatchScale: average engagement at this multiple of
	// follower count saturates the mismatch feature.
	engagementMismatchScale = 10.0
)

// duplicateRatio is the fraction of the account's posts that sit in
// clusters of size >= coordinatedClusterSize.
func duplicateRatio(posts []domain.Post, clusterSizeByPost map[string]int) float64 {
	if len(posts) == 0 {
		return 0
	}

	inDupes := 0

	for _, post := range posts {
		if clusterSizeByPost[post.ID] >= coordinatedClusterSize {
			inDupes++
		}
	}

	return float64(inDupes) / float64(len(posts))
}

// rateAnomaly compares the account's trailing 24h posting rate against the
// population baseline. At or below baseline scores zero; the feature
// saturates at rateAnomalyCeiling times baseline.
func rateAnomaly(rate, baseline float64) float64 {
	if baseline <= 0 || rate <= baseline {
		return 0
	}

	anomaly := (rate - baseline) / (baseline * (rateAnomalyCeiling - 1))

	return clamp01(anomaly)
}

// accountAgeFactor penalizes newer accounts on an inverse linear scale.
func accountAgeFactor(ageDays int) float64 {
	if ageDays < 0 {
		ageDays = 0
	}

	return clamp01(1 - float64(ageDays)/accountAgeHorizonDays)
}

// engagementMismatch flags accounts whose posts claim engagement far out of
// proportion to their follower count.
func engagementMismatch(posts []domain.Post, followers int) float64 {
	if len(posts) == 0 {
		return 0
	}

	total := 0

	for _, post := range posts {
		total += post.EngagementCount
	}

	avg := float64(total) / float64(len(posts))
	if avg <= 0 {
		return 0
	}

	return clamp01(avg / (engagementMismatchScale * float64(followers+1)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

// featureValues computes all scoring features for one account.
func featureValues(account domain.Account, posts []domain.Post, clusterSizeByPost map[string]int, baseline float64) map[string]float64 {
	return map[string]float64{
		config.FeatureDuplicateRatio:     duplicateRatio(posts, clusterSizeByPost),
		config.FeatureRateAnomaly:        rateAnomaly(account.PostingRateLast24, baseline),
		config.FeatureAccountAge:         accountAgeFactor(account.AccountAgeDays),
		config.FeatureEngagementMismatch: engagementMismatch(posts, account.FollowerCount),
	}
}
