// Package ingest accepts Post-shaped records from collaborator feeds over
// HTTP, validates them, and appends them to the post record store.
// Malformed posts are rejected, never queued.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/platform/observability"
	"github.com/trendai/narrative-engine/internal/store"
)

// sourceHeader identifies the upstream feed for rate limiting. Feeds that
// don't set it are limited by remote address.
const sourceHeader = "X-Source"

// maxRecordBytes caps how much body a single batch record may occupy. The
// whole body is bounded before decoding so an oversized payload is refused
// instead of buffered.
const maxRecordBytes = 64 << 10

// Appender is the store-side surface the handler needs.
type Appender interface {
	Append(post domain.Post, info store.AccountInfo) error
}

// PostArchiver persists accepted posts and the account metadata that rode
// along with them, outside the hot path. Best-effort.
type PostArchiver interface {
	SavePost(ctx context.Context, post domain.Post) error
	SaveAccount(ctx context.Context, account domain.Account) error
}

// Handler serves POST /ingest.
type Handler struct {
	appender Appender
	archiver PostArchiver
	logger   *zerolog.Logger
	maxBatch int

	limitRPS   rate.Limit
	limitBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHandler creates an ingestion handler. archiver may be nil.
func NewHandler(appender Appender, archiver PostArchiver, rps, burst, maxBatch int, logger *zerolog.Logger) *Handler {
	return &Handler{
		appender:   appender,
		archiver:   archiver,
		logger:     logger,
		maxBatch:   maxBatch,
		limitRPS:   rate.Limit(rps),
		limitBurst: burst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

type rejection struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

type ingestResponse struct {
	Accepted int         `json:"accepted"`
	Rejected []rejection `json:"rejected,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	if !h.allow(r) {
		observability.PostsRejected.WithLabelValues("rate_limited").Inc()
		http.Error(w, "rate limited", http.StatusTooManyRequests)

		return
	}

	if h.maxBatch > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxBatch)*maxRecordBytes)
	}

	var records []PostRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			observability.PostsRejected.WithLabelValues("batch_too_large").Inc()
			http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)

			return
		}

		observability.PostsRejected.WithLabelValues("malformed_body").Inc()
		http.Error(w, "malformed request body", http.StatusBadRequest)

		return
	}

	if h.maxBatch > 0 && len(records) > h.maxBatch {
		observability.PostsRejected.WithLabelValues("batch_too_large").Inc()
		http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)

		return
	}

	resp := h.appendBatch(r.Context(), records)

	status := http.StatusOK
	if resp.Accepted == 0 && len(resp.Rejected) > 0 {
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) appendBatch(ctx context.Context, records []PostRecord) ingestResponse {
	var resp ingestResponse

	for i, record := range records {
		post, info, err := Decode(record)
		if err == nil {
			err = h.appender.Append(post, info)
		}

		if err != nil {
			observability.PostsRejected.WithLabelValues("invalid").Inc()
			resp.Rejected = append(resp.Rejected, rejection{Index: i, ID: record.ID, Error: err.Error()})

			continue
		}

		resp.Accepted++

		h.archivePost(ctx, post, record)
	}

	return resp
}

func (h *Handler) archivePost(ctx context.Context, post domain.Post, record PostRecord) {
	if h.archiver == nil {
		return
	}

	if err := h.archiver.SavePost(ctx, post); err != nil {
		h.logger.Warn().Err(err).Str("post_id", post.ID).Msg("post archive write failed")
		observability.ArchiveWrites.WithLabelValues("post", "error").Inc()

		return
	}

	observability.ArchiveWrites.WithLabelValues("post", "ok").Inc()

	account := domain.Account{
		ID:             post.AccountID,
		Handle:         record.AccountHandle,
		AccountAgeDays: record.AccountAgeDays,
		FollowerCount:  record.FollowerCount,
		LastSeen:       post.Timestamp,
	}

	if err := h.archiver.SaveAccount(ctx, account); err != nil {
		h.logger.Warn().Err(err).Str("account_id", account.ID).Msg("account archive write failed")
		observability.ArchiveWrites.WithLabelValues("account", "error").Inc()

		return
	}

	observability.ArchiveWrites.WithLabelValues("account", "ok").Inc()
}

// allow applies a token-bucket limit per upstream source.
func (h *Handler) allow(r *http.Request) bool {
	if h.limitRPS <= 0 {
		return true
	}

	source := r.Header.Get(sourceHeader)
	if source == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		source = host
	}

	h.mu.Lock()

	limiter, ok := h.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(h.limitRPS, h.limitBurst)
		h.limiters[source] = limiter
	}

	h.mu.Unlock()

	return limiter.Allow()
}
