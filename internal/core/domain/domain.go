package domain

import "time"

// Post represents a normalized social-media post about a tracked narrative.
// Posts are immutable once accepted by the store.
type Post struct {
	ID              string    `json:"id"`
	NarrativeID     string    `json:"narrativeId"`
	AccountID       string    `json:"accountId"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"timestampUTC"`
	EngagementCount int       `json:"engagementCount"`
}

// Account holds rolling behavioral counters for a posting account.
// Counters are mutated only by incoming post events.
type Account struct {
	ID                string    `json:"id"`
	Handle            string    `json:"handle"`
	AccountAgeDays    int       `json:"accountAgeDays"`
	FollowerCount     int       `json:"followerCount"`
	PostingRateLast24 float64   `json:"postingRateLast24h"`
	LastSeen          time.Time `json:"-"`
}

// DuplicateCluster groups near-duplicate posts within one narrative.
// Clusters with a single member are never reported as duplicate clusters.
type DuplicateCluster struct {
	ClusterID           string   `json:"clusterId"`
	NarrativeID         string   `json:"narrativeId"`
	MemberPostIDs       []string `json:"memberPostIds"`
	MemberAccountIDs    []string `json:"memberAccountIds"`
	CentroidText        string   `json:"centroidText"`
	SimilarityThreshold float64  `json:"similarityThreshold"`
}

// Size returns the member count of the cluster.
func (c *DuplicateCluster) Size() int {
	return len(c.MemberPostIDs)
}

// BotScore is the current bot-likelihood estimate for an account within
// one narrative context. Recomputed wholesale on every pass.
type BotScore struct {
	AccountID            string             `json:"accountId"`
	Score                float64            `json:"score"`
	ComputedAt           time.Time          `json:"computedAt"`
	ContributingFeatures map[string]float64 `json:"contributingFeatures"`
}

// Edge kinds for the spread graph.
const (
	EdgeKindRepost    = "repost"
	EdgeKindMention   = "mention"
	EdgeKindCoCluster = "co-cluster"
)

// SpreadEdge is a directed, weighted relation between two accounts.
// Parallel edges of different kinds may exist between the same pair;
// self-edges never do.
type SpreadEdge struct {
	FromAccountID string  `json:"fromAccountId"`
	ToAccountID   string  `json:"toAccountId"`
	Weight        float64 `json:"weight"`
	Kind          string  `json:"kind"`
}

// GraphNode is an account as it appears in the spread graph snapshot.
type GraphNode struct {
	AccountID string  `json:"accountId"`
	Handle    string  `json:"handle"`
	BotScore  float64 `json:"botScore"`
	PostCount int     `json:"postCount"`
}

// NetworkSummary carries headline figures for a graph snapshot.
type NetworkSummary struct {
	NodeCount     int     `json:"nodeCount"`
	EdgeCount     int     `json:"edgeCount"`
	AvgBotScore   float64 `json:"avgBotScore"`
	Density       float64 `json:"density"`
	HighRiskNodes int     `json:"highRiskNodes"`
}

// SpreadGraph is the interaction graph for one narrative.
type SpreadGraph struct {
	NarrativeID string         `json:"narrativeId"`
	Nodes       []GraphNode    `json:"nodes"`
	Edges       []SpreadEdge   `json:"edges"`
	Summary     NetworkSummary `json:"summary"`
}

// Risk levels, ordered from benign to severe.
const (
	RiskSafe       = "safe"
	RiskSuspicious = "suspicious"
	RiskHigh       = "high"
)

// Trust labels derived from an account's trust score (100 - bot score).
const (
	TrustLabelReliable = "reliable"
	TrustLabelNeutral  = "neutral"
	TrustLabelBot      = "bot"
)

// AccountTrust pairs an account with its derived trust score and label.
type AccountTrust struct {
	AccountID  string  `json:"accountId"`
	Handle     string  `json:"handle"`
	TrustScore float64 `json:"trustScore"`
	Label      string  `json:"label"`
}

// NarrativeSummary is the per-narrative risk rollup. It is recomputed
// wholesale on each aggregation pass and published atomically; it is
// never patched field by field.
type NarrativeSummary struct {
	NarrativeID         string    `json:"narrativeId"`
	RiskLevel           string    `json:"riskLevel"`
	AvgTrustScore       float64   `json:"avgTrustScore"`
	DuplicatePercentage float64   `json:"duplicatePercentage"`
	BotClusterCount     int       `json:"botClusterCount"`
	TotalPosts          int       `json:"totalPosts"`
	UnclassifiedPosts   int       `json:"unclassifiedPosts"`
	Reasons             []string  `json:"reasons"`
	ComputedAt          time.Time `json:"computedAt"`
}

// Heatmap dimension names.
const (
	DimensionBotActivity    = "botActivity"
	DimensionDuplicatePosts = "duplicatePosts"
	DimensionViralSpread    = "viralSpread"
)

// HeatmapRow scores one narrative on each risk dimension, 0-100.
type HeatmapRow struct {
	NarrativeID    string  `json:"narrativeId"`
	BotActivity    float64 `json:"botActivity"`
	DuplicatePosts float64 `json:"duplicatePosts"`
	ViralSpread    float64 `json:"viralSpread"`
}
