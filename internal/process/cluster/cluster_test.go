package cluster

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/trendai/narrative-engine/internal/core/domain"
)

const (
	testThreshold   = 0.85
	testShingleSize = 3
	testMaxActive   = 512
	testNarrative   = "token-alpha"
)

func testClusterer() *Clusterer {
	return New(testThreshold, testShingleSize, testMaxActive, 48*time.Hour, nil)
}

func makePosts(texts ...string) []domain.Post {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := make([]domain.Post, 0, len(texts))

	for i, text := range texts {
		posts = append(posts, domain.Post{
			ID:          string(rune('a' + i)),
			NarrativeID: testNarrative,
			AccountID:   "acct-" + string(rune('a'+i)),
			Text:        text,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		})
	}

	return posts
}

func TestRunGroupsNearDuplicates(t *testing.T) {
	posts := makePosts(
		"this ai token is going to revolutionize everything buy now",
		"this ai token is going to revolutionize everything buy now!",
		"completely unrelated chatter about the weather in lisbon today",
	)

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Clusters) != 2 {
		t.Fatalf("Run() produced %d clusters, want 2", len(result.Clusters))
	}

	if result.Assignments[posts[0].ID] != result.Assignments[posts[1].ID] {
		t.Error("near-duplicate posts assigned to different clusters")
	}

	if result.Assignments[posts[2].ID] == result.Assignments[posts[0].ID] {
		t.Error("unrelated post joined the duplicate cluster")
	}
}

func TestRunExactDuplicatesShareOneCluster(t *testing.T) {
	text := "breaking the token just partnered with a major exchange"
	posts := makePosts(text, text, text, text, text)

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Clusters) != 1 {
		t.Fatalf("Run() produced %d clusters, want 1", len(result.Clusters))
	}

	if got := result.Clusters[0].Size(); got != 5 {
		t.Errorf("cluster size = %d, want 5", got)
	}
}

func TestRunMembersMeetThresholdAgainstCentroid(t *testing.T) {
	posts := makePosts(
		"the ai agent token just announced a huge exchange listing for next week",
		"the ai agent token just announced a huge exchange listing for next week!",
		"the ai agent token just announced a huge exchange listing for next week 🚀",
		"totally different subject matter that should stand alone in its own group",
	)

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, post := range posts {
		if result.Assignments[post.ID] == Unclassified {
			continue
		}

		if sim := result.Similarities[post.ID]; sim < testThreshold {
			t.Errorf("post %s joined a cluster at similarity %v, below threshold %v", post.ID, sim, testThreshold)
		}
	}
}

func TestRunEmptyAfterNormalizationIsUnclassified(t *testing.T) {
	posts := makePosts("🚀🚀🚀", "!!!", "real text about the ai token launch here")

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, id := range []string{posts[0].ID, posts[1].ID} {
		if result.Assignments[id] != Unclassified {
			t.Errorf("post %s assignment = %q, want %q", id, result.Assignments[id], Unclassified)
		}
	}

	// Unclassified posts never found clusters.
	if len(result.Clusters) != 1 {
		t.Errorf("Run() produced %d clusters, want 1", len(result.Clusters))
	}
}

func TestRunIsDeterministic(t *testing.T) {
	posts := makePosts(
		"the token will flip bitcoin by the end of the year mark my words",
		"the token will flip bitcoin by the end of the year mark my words!",
		"huge whale wallet just accumulated another million of the token supply",
		"huge whale wallet just accumulated another million of the token supply today",
		"random noise post with no relation to anything else in the window",
	)

	first, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	second, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(first.Assignments, second.Assignments) {
		t.Error("identical input produced different assignments")
	}

	if !reflect.DeepEqual(first.Clusters, second.Clusters) {
		t.Error("identical input produced different clusters")
	}
}

func TestRunClusterIDsAreMintedInCreationOrder(t *testing.T) {
	posts := makePosts(
		"first distinct message about the token presale details",
		"second distinct message about the exchange listing rumor mill",
	)

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{testNarrative + "-c0000", testNarrative + "-c0001"}
	for i, cl := range result.Clusters {
		if cl.ClusterID != want[i] {
			t.Errorf("cluster %d ID = %q, want %q", i, cl.ClusterID, want[i])
		}
	}
}

func TestRunFoundingPostSimilarityIsOne(t *testing.T) {
	posts := makePosts("a founding post with enough tokens to shingle properly here")

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sim := result.Similarities[posts[0].ID]; sim != 1 {
		t.Errorf("founding post similarity = %v, want 1", sim)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClusterer().Run(ctx, testNarrative, makePosts("some text"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestDuplicateClustersFiltersSingletons(t *testing.T) {
	text := "shared shill copy posted verbatim across multiple accounts"
	posts := makePosts(text, text, "a lone post that matches nothing else in the narrative")

	result, err := testClusterer().Run(context.Background(), testNarrative, posts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dupes := result.DuplicateClusters()
	if len(dupes) != 1 {
		t.Fatalf("DuplicateClusters() = %d clusters, want 1", len(dupes))
	}

	if dupes[0].Size() != 2 {
		t.Errorf("duplicate cluster size = %d, want 2", dupes[0].Size())
	}
}
