package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
	"github.com/trendai/narrative-engine/internal/store"
)

type recordingAppender struct {
	posts []domain.Post
}

func (r *recordingAppender) Append(post domain.Post, _ store.AccountInfo) error {
	r.posts = append(r.posts, post)

	return nil
}

func newTestHandler(appender Appender, maxBatch int) *Handler {
	logger := zerolog.Nop()

	return NewHandler(appender, nil, 0, 0, maxBatch, &logger)
}

func postBatch(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestHandlerAcceptsValidBatch(t *testing.T) {
	appender := &recordingAppender{}
	h := newTestHandler(appender, 500)

	rec := postBatch(t, h, `[
		{"id":"p1","narrativeId":"token-alpha","accountId":"acct-1","text":"hi","timestampUTC":"2026-05-01T12:00:00Z"},
		{"id":"p2","narrativeId":"token-alpha","accountId":"acct-2","text":"yo","timestampUTC":"2026-05-01T12:01:00Z"}
	]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Accepted int `json:"accepted"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", resp.Accepted)
	}

	if len(appender.posts) != 2 {
		t.Errorf("appended %d posts, want 2", len(appender.posts))
	}
}

func TestHandlerRejectsPerRecordWithoutFailingBatch(t *testing.T) {
	appender := &recordingAppender{}
	h := newTestHandler(appender, 500)

	rec := postBatch(t, h, `[
		{"id":"p1","narrativeId":"token-alpha","accountId":"acct-1","text":"ok","timestampUTC":"2026-05-01T12:00:00Z"},
		{"id":"p2","narrativeId":"token-alpha","accountId":"acct-2","text":"bad","timestampUTC":"garbage"}
	]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when some records are accepted", rec.Code)
	}

	var resp struct {
		Accepted int `json:"accepted"`
		Rejected []struct {
			Index int    `json:"index"`
			ID    string `json:"id"`
		} `json:"rejected"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", resp.Accepted)
	}

	if len(resp.Rejected) != 1 || resp.Rejected[0].ID != "p2" {
		t.Errorf("rejected = %+v, want p2 at index 1", resp.Rejected)
	}
}

func TestHandlerAllRejectedReturns422(t *testing.T) {
	h := newTestHandler(&recordingAppender{}, 500)

	rec := postBatch(t, h, `[{"id":"p1","narrativeId":"n","accountId":"a","timestampUTC":"garbage"}]`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 when every record is rejected", rec.Code)
	}
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(&recordingAppender{}, 500)

	rec := postBatch(t, h, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerRejectsOversizedBatch(t *testing.T) {
	h := newTestHandler(&recordingAppender{}, 1)

	rec := postBatch(t, h, `[
		{"id":"p1","narrativeId":"n","accountId":"a","timestampUTC":"2026-05-01T12:00:00Z"},
		{"id":"p2","narrativeId":"n","accountId":"a","timestampUTC":"2026-05-01T12:00:00Z"}
	]`)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	h := newTestHandler(&recordingAppender{}, 1)

	// One record, so the batch count check passes, but the body itself
	// blows past the byte bound for a single-record batch.
	body := `[{"id":"p1","narrativeId":"n","accountId":"a","timestampUTC":"2026-05-01T12:00:00Z","text":"` +
		strings.Repeat("x", 2*maxRecordBytes) + `"}]`

	rec := postBatch(t, h, body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	h := newTestHandler(&recordingAppender{}, 500)

	req := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandlerRateLimitsPerSource(t *testing.T) {
	logger := zerolog.Nop()
	h := NewHandler(&recordingAppender{}, nil, 1, 1, 500, &logger)

	body := `[{"id":"p1","narrativeId":"n","accountId":"a","timestampUTC":"2026-05-01T12:00:00Z"}]`

	first := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	first.Header.Set("X-Source", "feed-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)

	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	// Burst of 1 exhausted; the immediate follow-up from the same source
	// is throttled.
	second := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	second.Header.Set("X-Source", "feed-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}

	// A different source has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`[]`))
	other.Header.Set("X-Source", "feed-2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)

	if rec.Code != http.StatusOK {
		t.Errorf("other source status = %d, want 200", rec.Code)
	}
}
