// Package query exposes published pass results over a read-only HTTP API.
// Every response is served from the last completed pass; queries never
// trigger recomputation and never block a running pass.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/observability"
	"github.com/trendai/narrative-engine/internal/process/pass"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// SummaryHistorian reads previously archived summaries for a narrative,
// newest first.
type SummaryHistorian interface {
	SummaryHistory(ctx context.Context, narrativeID string, limit int) ([]domain.NarrativeSummary, error)
}

// Server routes read queries to the pass result registry.
type Server struct {
	registry *pass.Registry
	ingest   http.Handler
	history  SummaryHistorian
	logger   *zerolog.Logger
}

// NewServer creates the API surface. ingest may be nil in pass-only mode;
// history may be nil when no archive is configured.
func NewServer(registry *pass.Registry, ingest http.Handler, history SummaryHistorian, logger *zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		ingest:   ingest,
		history:  history,
		logger:   logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /narratives", s.instrument("narratives", s.handleNarratives))
	mux.HandleFunc("GET /narratives/{id}/summary", s.instrument("summary", s.handleSummary))
	mux.HandleFunc("GET /narratives/{id}/graph", s.instrument("graph", s.handleGraph))
	mux.HandleFunc("GET /narratives/{id}/clusters", s.instrument("clusters", s.handleClusters))
	mux.HandleFunc("GET /narratives/{id}/accounts", s.instrument("accounts", s.handleAccounts))
	mux.HandleFunc("GET /narratives/{id}/posts/suspicious", s.instrument("suspicious", s.handleSuspicious))
	mux.HandleFunc("GET /heatmap", s.instrument("heatmap", s.handleHeatmap))

	if s.history != nil {
		mux.HandleFunc("GET /narratives/{id}/summary/history", s.instrument("history", s.handleHistory))
	}

	if s.ingest != nil {
		mux.Handle("POST /ingest", s.ingest)
	}

	return mux
}

// instrument wraps a handler with per-endpoint request counting.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		observability.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(recorder.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type narrativeListing struct {
	NarrativeID string `json:"narrativeId"`
	RiskLevel   string `json:"riskLevel"`
	TotalPosts  int    `json:"totalPosts"`
	ComputedAt  string `json:"computedAtUTC"`
}

func (s *Server) handleNarratives(w http.ResponseWriter, _ *http.Request) {
	results := s.registry.All()

	listings := make([]narrativeListing, 0, len(results))
	for _, result := range results {
		listings = append(listings, narrativeListing{
			NarrativeID: result.Summary.NarrativeID,
			RiskLevel:   result.Summary.RiskLevel,
			TotalPosts:  result.Summary.TotalPosts,
			ComputedAt:  result.Summary.ComputedAt.Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, result.Summary)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, result.Graph)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, result.Clusters)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, result.Trust)
}

func (s *Server) handleSuspicious(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, result.Suspicious)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	narrativeID := r.PathValue("id")

	limit := defaultHistoryLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)

			return
		}

		limit = parsed
	}

	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	summaries, err := s.history.SummaryHistory(r.Context(), narrativeID, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("narrative", narrativeID).Msg("summary history read failed")
		http.Error(w, "archive unavailable", http.StatusServiceUnavailable)

		return
	}

	if len(summaries) == 0 {
		http.Error(w, fmt.Sprintf("narrative %s: %s", narrativeID, engerrors.ErrNotFound), http.StatusNotFound)

		return
	}

	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, _ *http.Request) {
	results := s.registry.All()

	rows := make([]domain.HeatmapRow, 0, len(results))
	for _, result := range results {
		rows = append(rows, result.Heatmap)
	}

	s.writeJSON(w, http.StatusOK, rows)
}

// lookup resolves the narrative path parameter against the registry.
// Narratives with no completed pass yet answer 404, matching unknown IDs.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*pass.Result, bool) {
	narrativeID := r.PathValue("id")

	result, ok := s.registry.Get(narrativeID)
	if !ok {
		http.Error(w, fmt.Sprintf("narrative %s: %s", narrativeID, engerrors.ErrNotFound), http.StatusNotFound)

		return nil, false
	}

	return result, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Msg("response encode failed")
	}
}
