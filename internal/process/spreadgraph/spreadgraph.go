// Package spreadgraph builds the directed account-interaction graph for a
// narrative: repost, mention, and co-cluster relations accumulated from an
// immutable pass snapshot. The builder only accumulates edges; it performs
// no traversal, so cycles in the output are harmless by construction.
package spreadgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/process/cluster"
)

// highRiskThreshold marks nodes counted as high-risk in the network summary.
const highRiskThreshold = 85

// Builder accumulates spread edges from posts and cluster output.
type Builder struct {
	edges map[edgeKey]float64
}

type edgeKey struct {
	from string
	to   string
	kind string
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{edges: make(map[edgeKey]float64)}
}

// Build constructs the full spread graph for one narrative window.
// Parallel edges of the same kind between the same ordered pair are merged
// by summing weights; self-edges are never emitted.
func (b *Builder) Build(ctx context.Context, narrativeID string, posts []domain.Post, accounts map[string]domain.Account, clusters cluster.Result, scores []domain.BotScore) (domain.SpreadGraph, error) {
	if err := b.addRepostEdges(ctx, posts, clusters); err != nil {
		return domain.SpreadGraph{}, err
	}

	b.addCoClusterEdges(clusters)

	if err := b.addMentionEdges(ctx, posts, accounts); err != nil {
		return domain.SpreadGraph{}, err
	}

	return b.assemble(narrativeID, posts, accounts, scores), nil
}

// addRepostEdges emits an edge from a cluster's originating author to each
// later member's author, weighted by the member's similarity to the
// centroid. Posts arrive timestamp-ascending, so the first member of each
// cluster is its originator.
func (b *Builder) addRepostEdges(ctx context.Context, posts []domain.Post, clusters cluster.Result) error {
	originator := make(map[string]domain.Post)
	postByID := make(map[string]domain.Post, len(posts))

	for _, post := range posts {
		postByID[post.ID] = post
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("repost edges: %w", err)
		}

		clusterID, ok := clusters.Assignments[post.ID]
		if !ok || clusterID == cluster.Unclassified {
			continue
		}

		origin, seen := originator[clusterID]
		if !seen {
			originator[clusterID] = post

			continue
		}

		if post.AccountID == origin.AccountID || !post.Timestamp.After(origin.Timestamp) {
			continue
		}

		b.add(origin.AccountID, post.AccountID, domain.EdgeKindRepost, clusters.Similarities[post.ID])
	}

	return nil
}

// addCoClusterEdges connects every account pair sharing a cluster. One edge
// per unordered pair, canonical low-to-high direction, weight 1/clusterSize
// to dampen dense clusters.
func (b *Builder) addCoClusterEdges(clusters cluster.Result) {
	for _, cl := range clusters.Clusters {
		if len(cl.MemberAccountIDs) < 2 {
			continue
		}

		weight := 1 / float64(cl.Size())

		ids := append([]string(nil), cl.MemberAccountIDs...)
		sort.Strings(ids)

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				b.add(ids[i], ids[j], domain.EdgeKindCoCluster, weight)
			}
		}
	}
}

// addMentionEdges emits an edge whenever post text references a known
// account handle as @handle.
func (b *Builder) addMentionEdges(ctx context.Context, posts []domain.Post, accounts map[string]domain.Account) error {
	handleToID := make(map[string]string, len(accounts))

	for id, acct := range accounts {
		if acct.Handle == "" {
			continue
		}

		handleToID[strings.ToLower(strings.TrimPrefix(acct.Handle, "@"))] = id
	}

	if len(handleToID) == 0 {
		return nil
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mention edges: %w", err)
		}

		for _, handle := range extractMentions(post.Text) {
			target, ok := handleToID[handle]
			if !ok || target == post.AccountID {
				continue
			}

			b.add(post.AccountID, target, domain.EdgeKindMention, 1)
		}
	}

	return nil
}

// extractMentions returns lowercase handles referenced as @handle, each
// counted once per post.
func extractMentions(text string) []string {
	var mentions []string

	seen := make(map[string]struct{})
	fields := strings.Fields(text)

	for _, field := range fields {
		if !strings.HasPrefix(field, "@") || len(field) < 2 {
			continue
		}

		handle := strings.ToLower(strings.TrimFunc(field[1:], func(r rune) bool {
			return !isHandleRune(r)
		}))
		if handle == "" {
			continue
		}

		if _, dup := seen[handle]; dup {
			continue
		}

		seen[handle] = struct{}{}
		mentions = append(mentions, handle)
	}

	return mentions
}

func isHandleRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (b *Builder) add(from, to, kind string, weight float64) {
	if from == to || weight <= 0 {
		return
	}

	b.edges[edgeKey{from: from, to: to, kind: kind}] += weight
}

// assemble produces the final graph with deterministic node and edge order.
func (b *Builder) assemble(narrativeID string, posts []domain.Post, accounts map[string]domain.Account, scores []domain.BotScore) domain.SpreadGraph {
	scoreByAccount := make(map[string]float64, len(scores))
	for _, sc := range scores {
		scoreByAccount[sc.AccountID] = sc.Score
	}

	postCounts := make(map[string]int)
	for _, post := range posts {
		postCounts[post.AccountID]++
	}

	nodes := make([]domain.GraphNode, 0, len(accounts))

	for id, acct := range accounts {
		nodes = append(nodes, domain.GraphNode{
			AccountID: id,
			Handle:    acct.Handle,
			BotScore:  scoreByAccount[id],
			PostCount: postCounts[id],
		})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].AccountID < nodes[j].AccountID })

	edges := make([]domain.SpreadEdge, 0, len(b.edges))

	for key, weight := range b.edges {
		edges = append(edges, domain.SpreadEdge{
			FromAccountID: key.from,
			ToAccountID:   key.to,
			Weight:        weight,
			Kind:          key.kind,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}

		if a.FromAccountID != c.FromAccountID {
			return a.FromAccountID < c.FromAccountID
		}

		return a.ToAccountID < c.ToAccountID
	})

	return domain.SpreadGraph{
		NarrativeID: narrativeID,
		Nodes:       nodes,
		Edges:       edges,
		Summary:     summarize(nodes, edges),
	}
}

// summarize computes the network headline figures. Density is edge count
// over the maximum possible directed edges between distinct nodes.
func summarize(nodes []domain.GraphNode, edges []domain.SpreadEdge) domain.NetworkSummary {
	summary := domain.NetworkSummary{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}

	if len(nodes) > 0 {
		total := 0.0

		for _, node := range nodes {
			total += node.BotScore

			if node.BotScore >= highRiskThreshold {
				summary.HighRiskNodes++
			}
		}

		summary.AvgBotScore = total / float64(len(nodes))
	}

	if len(nodes) > 1 {
		maxEdges := float64(len(nodes) * (len(nodes) - 1))

		summary.Density = float64(len(edges)) / maxEdges
		if summary.Density > 1 {
			summary.Density = 1
		}
	}

	return summary
}
