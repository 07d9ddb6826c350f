package botscore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/config"
)

const testBaseline = 2.0

var testComputedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testWeights() map[string]float64 {
	return map[string]float64{
		config.FeatureDuplicateRatio:     40,
		config.FeatureRateAnomaly:        25,
		config.FeatureAccountAge:         20,
		config.FeatureEngagementMismatch: 15,
	}
}

func testScorer() *Scorer {
	return New(testWeights(), testBaseline, 4, nil)
}

func TestScoreNoPostsReturnsInsufficientData(t *testing.T) {
	_, err := testScorer().Score(domain.Account{ID: "acct-1"}, nil, nil, testComputedAt)
	if !engerrors.Is(err, engerrors.ErrInsufficientData) {
		t.Errorf("Score() error = %v, want ErrInsufficientData", err)
	}
}

func TestScoreRangeIsClamped(t *testing.T) {
	// Every feature saturated: brand-new account, posting far over baseline,
	// all posts in a coordinated cluster, absurd engagement for zero followers.
	account := domain.Account{
		ID:                "acct-max",
		AccountAgeDays:    0,
		FollowerCount:     0,
		PostingRateLast24: testBaseline * 100,
	}

	posts := []domain.Post{
		{ID: "p1", AccountID: account.ID, EngagementCount: 100000},
		{ID: "p2", AccountID: account.ID, EngagementCount: 100000},
	}

	clusterSizes := map[string]int{"p1": 10, "p2": 10}

	score, err := testScorer().Score(account, posts, clusterSizes, testComputedAt)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if score.Score < 0 || score.Score > 100 {
		t.Errorf("Score() = %v outside [0,100]", score.Score)
	}

	if math.Abs(score.Score-100) > 1e-9 {
		t.Errorf("fully saturated features scored %v, want 100", score.Score)
	}
}

func TestScoreBenignAccountScoresLow(t *testing.T) {
	account := domain.Account{
		ID:                "acct-ok",
		AccountAgeDays:    2000,
		FollowerCount:     5000,
		PostingRateLast24: 0.1,
	}

	posts := []domain.Post{{ID: "p1", AccountID: account.ID, EngagementCount: 12}}

	score, err := testScorer().Score(account, posts, nil, testComputedAt)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if score.Score > 10 {
		t.Errorf("benign account scored %v, want near zero", score.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	account := domain.Account{ID: "acct-1", AccountAgeDays: 30, FollowerCount: 50, PostingRateLast24: 5}
	posts := []domain.Post{{ID: "p1", AccountID: account.ID, EngagementCount: 400}}
	clusterSizes := map[string]int{"p1": 4}

	first, err := testScorer().Score(account, posts, clusterSizes, testComputedAt)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	// A randomized summation order drifts at the last float64 bit only
	// occasionally, so a single recompute is not enough to catch it.
	for i := 0; i < 200; i++ {
		next, err := testScorer().Score(account, posts, clusterSizes, testComputedAt)
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}

		if next.Score != first.Score {
			t.Fatalf("call %d scored %v, first call scored %v", i, next.Score, first.Score)
		}
	}
}

func TestScoreRecordsContributingFeatures(t *testing.T) {
	account := domain.Account{ID: "acct-1", AccountAgeDays: 100, FollowerCount: 10, PostingRateLast24: 1}
	posts := []domain.Post{{ID: "p1", AccountID: account.ID, EngagementCount: 5}}

	score, err := testScorer().Score(account, posts, nil, testComputedAt)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	for _, feature := range []string{
		config.FeatureDuplicateRatio,
		config.FeatureRateAnomaly,
		config.FeatureAccountAge,
		config.FeatureEngagementMismatch,
	} {
		if _, ok := score.ContributingFeatures[feature]; !ok {
			t.Errorf("ContributingFeatures missing %q", feature)
		}
	}
}

func TestScoreAllSkipsAccountsWithoutPosts(t *testing.T) {
	accounts := map[string]domain.Account{
		"acct-a": {ID: "acct-a", AccountAgeDays: 500},
		"acct-b": {ID: "acct-b", AccountAgeDays: 500},
	}

	postsByAccount := map[string][]domain.Post{
		"acct-a": {{ID: "p1", AccountID: "acct-a"}},
	}

	scores, err := testScorer().ScoreAll(context.Background(), accounts, postsByAccount, nil, testComputedAt)
	if err != nil {
		t.Fatalf("ScoreAll() error = %v", err)
	}

	if len(scores) != 1 {
		t.Fatalf("ScoreAll() = %d scores, want 1 (account without posts omitted)", len(scores))
	}

	if scores[0].AccountID != "acct-a" {
		t.Errorf("ScoreAll() scored %q, want acct-a", scores[0].AccountID)
	}
}

func TestScoreAllOutputSortedByAccountID(t *testing.T) {
	accounts := make(map[string]domain.Account)
	postsByAccount := make(map[string][]domain.Post)

	for _, id := range []string{"acct-z", "acct-a", "acct-m", "acct-b"} {
		accounts[id] = domain.Account{ID: id, AccountAgeDays: 100}
		postsByAccount[id] = []domain.Post{{ID: "p-" + id, AccountID: id}}
	}

	scores, err := testScorer().ScoreAll(context.Background(), accounts, postsByAccount, nil, testComputedAt)
	if err != nil {
		t.Fatalf("ScoreAll() error = %v", err)
	}

	for i := 1; i < len(scores); i++ {
		if scores[i-1].AccountID > scores[i].AccountID {
			t.Fatalf("ScoreAll() output not sorted: %q before %q", scores[i-1].AccountID, scores[i].AccountID)
		}
	}
}

func TestScoreAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	accounts := map[string]domain.Account{"acct-a": {ID: "acct-a"}}
	postsByAccount := map[string][]domain.Post{"acct-a": {{ID: "p1", AccountID: "acct-a"}}}

	_, err := testScorer().ScoreAll(ctx, accounts, postsByAccount, nil, testComputedAt)
	if err == nil {
		t.Error("ScoreAll() with canceled context should fail")
	}
}

func TestDuplicateRatio(t *testing.T) {
	posts := []domain.Post{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}, {ID: "p4"}}
	clusterSizes := map[string]int{"p1": 5, "p2": 5, "p3": 2}

	// p3 sits in a cluster below the coordination size and does not count.
	if got := duplicateRatio(posts, clusterSizes); got != 0.5 {
		t.Errorf("duplicateRatio() = %v, want 0.5", got)
	}
}

func TestRateAnomaly(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		baseline float64
		expected float64
	}{
		{name: "at baseline", rate: 2, baseline: 2, expected: 0},
		{name: "below baseline", rate: 1, baseline: 2, expected: 0},
		{name: "at ceiling", rate: 20, baseline: 2, expected: 1},
		{name: "beyond ceiling clamps", rate: 200, baseline: 2, expected: 1},
		{name: "zero baseline", rate: 50, baseline: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rateAnomaly(tt.rate, tt.baseline); got != tt.expected {
				t.Errorf("rateAnomaly(%v, %v) = %v, want %v", tt.rate, tt.baseline, got, tt.expected)
			}
		})
	}
}

func TestAccountAgeFactor(t *testing.T) {
	if got := accountAgeFactor(0); got != 1 {
		t.Errorf("accountAgeFactor(0) = %v, want 1", got)
	}

	if got := accountAgeFactor(365); got != 0 {
		t.Errorf("accountAgeFactor(365) = %v, want 0", got)
	}

	if got := accountAgeFactor(3650); got != 0 {
		t.Errorf("accountAgeFactor(3650) = %v, want 0", got)
	}

	if got := accountAgeFactor(-5); got != 1 {
		t.Errorf("accountAgeFactor(-5) = %v, want 1", got)
	}
}
