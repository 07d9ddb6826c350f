package ingest

import (
	"testing"
	"time"

	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
)

func TestDecodeParsesLenientTimestamps(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		expected  time.Time
	}{
		{
			name:      "rfc3339",
			timestamp: "2026-05-01T12:00:00Z",
			expected:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "rfc3339 with offset normalized to utc",
			timestamp: "2026-05-01T14:00:00+02:00",
			expected:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "date only",
			timestamp: "2026-05-01",
			expected:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := PostRecord{
				ID:          "p1",
				NarrativeID: "token-alpha",
				AccountID:   "acct-1",
				Text:        "hello",
				Timestamp:   tt.timestamp,
			}

			post, _, err := Decode(record)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if !post.Timestamp.Equal(tt.expected) {
				t.Errorf("Decode() timestamp = %v, want %v", post.Timestamp, tt.expected)
			}
		})
	}
}

func TestDecodeRejectsUnparseableTimestamp(t *testing.T) {
	record := PostRecord{ID: "p1", NarrativeID: "token-alpha", AccountID: "acct-1", Timestamp: "not a time"}

	_, _, err := Decode(record)
	if !engerrors.Is(err, engerrors.ErrInvalidPost) {
		t.Errorf("Decode() error = %v, want ErrInvalidPost", err)
	}
}

func TestDecodeCarriesAccountInfo(t *testing.T) {
	record := PostRecord{
		ID:             "p1",
		NarrativeID:    "token-alpha",
		AccountID:      "acct-1",
		Timestamp:      "2026-05-01T12:00:00Z",
		AccountHandle:  "@alpha",
		AccountAgeDays: 42,
		FollowerCount:  1200,
	}

	_, info, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if info.Handle != "@alpha" || info.AccountAgeDays != 42 || info.FollowerCount != 1200 {
		t.Errorf("Decode() info = %+v, want handle/age/followers carried through", info)
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text passes through",
			input:    "just a normal post",
			expected: "just a normal post",
		},
		{
			name:     "html stripped",
			input:    "<p>big <b>news</b> today</p>",
			expected: "big news today",
		},
		{
			name:     "nested markup collapses whitespace",
			input:    "<div>\n  <span>one</span>\n  <span>two</span>\n</div>",
			expected: "one two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkup(tt.input); got != tt.expected {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
