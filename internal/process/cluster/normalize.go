package cluster

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares post text for similarity comparison: NFKC-fold so
// stylistic unicode variants (fullwidth letters, ligatures) compare equal,
// lowercase, drop emoji/symbols/punctuation, collapse whitespace.
// Emoji-only posts normalize to the empty string and are excluded from
// clustering entirely.
func Normalize(text string) string {
	folded := norm.NFKC.String(text)

	var sb strings.Builder

	sb.Grow(len(folded))

	lastSpace := true

	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))

			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				sb.WriteByte(' ')

				lastSpace = true
			}
		default:
			// Punctuation, emoji, symbols: treated as token boundaries.
			if !lastSpace {
				sb.WriteByte(' ')

				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(sb.String())
}

// Shingles returns the k-token shingle set of normalized text. Texts
// shorter than k tokens fall back to single-token shingles so short
// near-duplicates still compare meaningfully.
func Shingles(normalized string, k int) map[string]struct{} {
	tokens := strings.Fields(normalized)
	set := make(map[string]struct{})

	if len(tokens) == 0 {
		return set
	}

	if k < 1 {
		k = 1
	}

	if len(tokens) < k {
		for _, tok := range tokens {
			set[tok] = struct{}{}
		}

		return set
	}

	for i := 0; i+k <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+k], " ")] = struct{}{}
	}

	return set
}

// Jaccard computes set overlap in [0,1]. Two empty sets are not similar:
// similarity of nothing to nothing carries no signal.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersect := 0

	for s := range small {
		if _, ok := large[s]; ok {
			intersect++
		}
	}

	union := len(a) + len(b) - intersect

	return float64(intersect) / float64(union)
}
