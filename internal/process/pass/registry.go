package pass

import (
	"sort"
	"sync"

	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/platform/observability"
)

// Result is the complete output of one finished pass. It is immutable once
// published; readers share it without copying.
type Result struct {
	Summary    domain.NarrativeSummary
	Graph      domain.SpreadGraph
	Clusters   []domain.DuplicateCluster
	Trust      []domain.AccountTrust
	Suspicious []domain.Post
	Heatmap    domain.HeatmapRow
}

// Registry holds the most recently completed pass result per narrative.
// Publication is a single pointer swap under the lock: a reader either sees
// the previous complete result or the new one, never a mix.
type Registry struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{results: make(map[string]*Result)}
}

// Publish atomically replaces the narrative's result.
func (r *Registry) Publish(narrativeID string, result *Result) {
	r.mu.Lock()
	r.results[narrativeID] = result
	count := len(r.results)
	r.mu.Unlock()

	observability.PublishedSummaries.Set(float64(count))
}

// Get returns the last completed result for a narrative, if any.
func (r *Registry) Get(narrativeID string) (*Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.results[narrativeID]

	return result, ok
}

// Narratives lists narrative IDs with at least one completed pass, sorted.
func (r *Registry) Narratives() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.results))
	for id := range r.results {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// All returns every published result, ordered by narrative ID.
func (r *Registry) All() []*Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.results))
	for id := range r.results {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	out := make([]*Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.results[id])
	}

	return out
}
