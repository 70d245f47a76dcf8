package app

import (
	"strings"
	"unicode"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

const (
	markerUp   = "++"
	markerDown = "--"

	// trailingPunct may follow a marker at the end of a sentence: "thanks bob++!"
	trailingPunct = ".,!?;:"
)

// ParseKarma scans text for whitespace-delimited karma tokens and returns one
// intent per token in order of appearance. Identifiers are single words, or
// phrases wrapped in double quotes or parentheses: "open source"++, (bad jokes)--.
// Tokens without a usable identifier are skipped.
func ParseKarma(text string) []domain.Intent {
	var intents []domain.Intent

	rest := text
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			return intents
		}

		var (
			token string
			ident string
			delta int64
		)
		token, ident, delta, rest = nextToken(rest)
		if delta == 0 {
			continue
		}

		subject, ok := NormalizeSubject(ident)
		if !ok {
			continue
		}
		intents = append(intents, domain.Intent{Subject: subject, Delta: delta, RawToken: token})
	}
}

// nextToken consumes one token from s, which must not start with whitespace.
// delta is zero when the token is not a karma token.
func nextToken(s string) (token, ident string, delta int64, rest string) {
	if closer, ok := phraseCloser(s[0]); ok {
		if end := strings.IndexByte(s[1:], closer); end >= 0 {
			end++ // index of the closer within s
			after := s[end+1:]
			suffixEnd := wordEnd(after)
			if d := exactMarker(after[:suffixEnd]); d != 0 {
				return s[:end+1+suffixEnd], s[1:end], d, after[suffixEnd:]
			}
		}
	}

	n := wordEnd(s)
	word := strings.TrimRight(s[:n], trailingPunct)
	d := markerDelta(word)
	if d == 0 {
		return s[:n], "", 0, s[n:]
	}
	return s[:n], word[:len(word)-len(markerUp)], d, s[n:]
}

// markerDelta reports the vote carried by a trailing marker on word.
func markerDelta(word string) int64 {
	word = strings.TrimRight(word, trailingPunct)
	switch {
	case strings.HasSuffix(word, markerUp):
		return 1
	case strings.HasSuffix(word, markerDown):
		return -1
	default:
		return 0
	}
}

// exactMarker is markerDelta for a suffix that must be nothing but the marker.
func exactMarker(suffix string) int64 {
	switch strings.TrimRight(suffix, trailingPunct) {
	case markerUp:
		return 1
	case markerDown:
		return -1
	default:
		return 0
	}
}

func phraseCloser(b byte) (byte, bool) {
	switch b {
	case '"':
		return '"', true
	case '(':
		return ')', true
	default:
		return 0, false
	}
}

func wordEnd(s string) int {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return i
	}
	return len(s)
}

// MergeIntents collapses intents for the same subject into one intent at the
// position of the first occurrence, summing the deltas.
func MergeIntents(intents []domain.Intent) []domain.Intent {
	merged := make([]domain.Intent, 0, len(intents))
	index := make(map[string]int, len(intents))

	for _, in := range intents {
		if i, ok := index[in.Subject.Key]; ok {
			merged[i].Delta += in.Delta
			merged[i].RawToken += " " + in.RawToken
			continue
		}
		index[in.Subject.Key] = len(merged)
		merged = append(merged, in)
	}
	return merged
}
