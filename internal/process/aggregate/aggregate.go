// Package aggregate folds cluster sizes, bot scores, and graph density into
// the per-narrative summary metrics. Everything here is a pure function of
// the pass outputs: the whole summary is recomputed on every pass and
// published atomically, never patched field by field.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/process/cluster"
)

// Classification rule thresholds. Rules apply in order; first match wins.
const (
	highDuplicatePercentage = 40.0
	highBotScore            = 85.0
	highBotAccountCount     = 3

	suspiciousDuplicatePercentage = 20.0
	suspiciousAvgBotScore         = 60.0

	// botClusterScoreThreshold marks a duplicate cluster as bot-driven when
	// its member accounts' mean bot score reaches it.
	botClusterScoreThreshold = 70.0

	// suspiciousAuthorScore selects posts for the suspicious-post listing.
	suspiciousAuthorScore = 70.0

	trustReliableAbove = 75.0
	trustBotBelow      = 30.0
)

// Summarize computes the narrative summary from one pass's outputs.
// computedAt must be derived from the snapshot (latest post timestamp), so
// re-running a pass over an unchanged window reproduces the summary
// byte for byte.
func Summarize(narrativeID string, totalPosts int, clusters cluster.Result, scores []domain.BotScore, graph domain.SpreadGraph, computedAt time.Time) domain.NarrativeSummary {
	summary := domain.NarrativeSummary{
		NarrativeID: narrativeID,
		TotalPosts:  totalPosts,
		ComputedAt:  computedAt,
	}

	for _, assigned := range clusters.Assignments {
		if assigned == cluster.Unclassified {
			summary.UnclassifiedPosts++
		}
	}

	summary.DuplicatePercentage = duplicatePercentage(totalPosts, clusters)

	avgBot := avgBotScore(scores)
	summary.AvgTrustScore = clampScore(100 - avgBot)
	summary.BotClusterCount = botClusterCount(clusters, scores)

	highScorers := 0

	for _, sc := range scores {
		if sc.Score >= highBotScore {
			highScorers++
		}
	}

	summary.RiskLevel, summary.Reasons = classify(summary.DuplicatePercentage, avgBot, highScorers)

	return summary
}

// classify applies the risk rules in order: the duplicate-content and
// high-scorer rules dominate the average-score rule.
func classify(duplicatePct, avgBot float64, highScorers int) (string, []string) {
	var reasons []string

	switch {
	case duplicatePct >= highDuplicatePercentage || highScorers >= highBotAccountCount:
		if duplicatePct >= highDuplicatePercentage {
			reasons = append(reasons, fmt.Sprintf("high duplication ratio (%.1f%%)", duplicatePct))
		}

		if highScorers >= highBotAccountCount {
			reasons = append(reasons, fmt.Sprintf("%d accounts scoring >= %.0f", highScorers, highBotScore))
		}

		return domain.RiskHigh, reasons
	case duplicatePct >= suspiciousDuplicatePercentage || avgBot >= suspiciousAvgBotScore:
		if duplicatePct >= suspiciousDuplicatePercentage {
			reasons = append(reasons, fmt.Sprintf("moderate duplication ratio (%.1f%%)", duplicatePct))
		}

		if avgBot >= suspiciousAvgBotScore {
			reasons = append(reasons, fmt.Sprintf("elevated average bot score (%.1f)", avgBot))
		}

		return domain.RiskSuspicious, reasons
	default:
		return domain.RiskSafe, []string{"signals normal"}
	}
}

// duplicatePercentage is the share of posts sitting in clusters of size >= 2.
func duplicatePercentage(totalPosts int, clusters cluster.Result) float64 {
	if totalPosts == 0 {
		return 0
	}

	duplicated := 0

	for _, cl := range clusters.Clusters {
		if cl.Size() >= 2 {
			duplicated += cl.Size()
		}
	}

	return 100 * float64(duplicated) / float64(totalPosts)
}

func avgBotScore(scores []domain.BotScore) float64 {
	if len(scores) == 0 {
		return 0
	}

	total := 0.0
	for _, sc := range scores {
		total += sc.Score
	}

	return total / float64(len(scores))
}

// botClusterCount counts duplicate clusters whose member accounts average a
// bot score at or above the threshold. Single-member clusters are not
// duplicate clusters and never count.
func botClusterCount(clusters cluster.Result, scores []domain.BotScore) int {
	scoreByAccount := make(map[string]float64, len(scores))
	for _, sc := range scores {
		scoreByAccount[sc.AccountID] = sc.Score
	}

	count := 0

	for _, cl := range clusters.Clusters {
		if cl.Size() < 2 || len(cl.MemberAccountIDs) == 0 {
			continue
		}

		total := 0.0
		scored := 0

		for _, accountID := range cl.MemberAccountIDs {
			score, ok := scoreByAccount[accountID]
			if !ok {
				continue
			}

			total += score
			scored++
		}

		if scored == 0 {
			continue
		}

		if total/float64(scored) >= botClusterScoreThreshold {
			count++
		}
	}

	return count
}

// TrustEntries derives per-account trust scores and labels from bot scores.
// Lowest trust first so the dashboard's suspicious-accounts panel reads
// straight off the head of the list.
func TrustEntries(scores []domain.BotScore, accounts map[string]domain.Account) []domain.AccountTrust {
	entries := make([]domain.AccountTrust, 0, len(scores))

	for _, sc := range scores {
		trust := clampScore(100 - sc.Score)

		entries = append(entries, domain.AccountTrust{
			AccountID:  sc.AccountID,
			Handle:     accounts[sc.AccountID].Handle,
			TrustScore: trust,
			Label:      trustLabel(trust),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TrustScore != entries[j].TrustScore {
			return entries[i].TrustScore < entries[j].TrustScore
		}

		return entries[i].AccountID < entries[j].AccountID
	})

	return entries
}

func trustLabel(trust float64) string {
	switch {
	case trust > trustReliableAbove:
		return domain.TrustLabelReliable
	case trust < trustBotBelow:
		return domain.TrustLabelBot
	default:
		return domain.TrustLabelNeutral
	}
}

// SuspiciousPosts lists posts in duplicate clusters whose authors score at
// or above the suspicious threshold, largest clusters first.
func SuspiciousPosts(posts []domain.Post, clusters cluster.Result, scores []domain.BotScore) []domain.Post {
	scoreByAccount := make(map[string]float64, len(scores))
	for _, sc := range scores {
		scoreByAccount[sc.AccountID] = sc.Score
	}

	sizeByCluster := make(map[string]int, len(clusters.Clusters))
	for _, cl := range clusters.Clusters {
		sizeByCluster[cl.ClusterID] = cl.Size()
	}

	var out []domain.Post

	for _, post := range posts {
		clusterID := clusters.Assignments[post.ID]
		if clusterID == "" || clusterID == cluster.Unclassified || sizeByCluster[clusterID] < 2 {
			continue
		}

		if scoreByAccount[post.AccountID] < suspiciousAuthorScore {
			continue
		}

		out = append(out, post)
	}

	assignments := clusters.Assignments

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := sizeByCluster[assignments[out[i].ID]], sizeByCluster[assignments[out[j].ID]]
		if si != sj {
			return si > sj
		}

		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return v
}
