package ingest

import (
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/store"
)

// PostRecord is the wire shape collaborator feeds push to /ingest.
// Timestamps arrive in whatever format the upstream scraper produces;
// account metadata rides along with each post.
type PostRecord struct {
	ID              string `json:"id"`
	NarrativeID     string `json:"narrativeId"`
	AccountID       string `json:"accountId"`
	Text            string `json:"text"`
	Timestamp       string `json:"timestampUTC"`
	EngagementCount int    `json:"engagementCount"`
	AccountHandle   string `json:"accountHandle,omitempty"`
	AccountAgeDays  int    `json:"accountAgeDays,omitempty"`
	FollowerCount   int    `json:"followerCount,omitempty"`
}

// Decode converts a wire record into a domain post and account metadata.
// The timestamp is parsed leniently and normalized to UTC; post text is
// stripped of any embedded markup before it enters the store.
func Decode(record PostRecord) (domain.Post, store.AccountInfo, error) {
	ts, err := dateparse.ParseAny(record.Timestamp)
	if err != nil {
		return domain.Post{}, store.AccountInfo{}, fmt.Errorf("%w: timestamp %q: %s", engerrors.ErrInvalidPost, record.Timestamp, err)
	}

	post := domain.Post{
		ID:              record.ID,
		NarrativeID:     record.NarrativeID,
		AccountID:       record.AccountID,
		Text:            StripMarkup(record.Text),
		Timestamp:       ts.UTC(),
		EngagementCount: record.EngagementCount,
	}

	info := store.AccountInfo{
		Handle:         record.AccountHandle,
		AccountAgeDays: record.AccountAgeDays,
		FollowerCount:  record.FollowerCount,
	}

	return post, info, nil
}

// StripMarkup extracts plain text from post bodies that arrive with
// embedded HTML (common with scraped feeds). Plain text passes through
// unchanged.
func StripMarkup(text string) string {
	if !strings.ContainsAny(text, "<>") {
		return strings.TrimSpace(text)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(text))

	var sb strings.Builder

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		if tt == html.TextToken {
			sb.WriteString(tokenizer.Token().Data)
		}
	}

	out := strings.Join(strings.Fields(sb.String()), " ")
	if out == "" {
		// Tokenizer produced nothing useful; fall back to the raw text.
		return strings.TrimSpace(text)
	}

	return out
}
