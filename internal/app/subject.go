package app

import (
	"strings"
	"unicode"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"golang.org/x/text/cases"
)

// markerChars are stripped from both ends of an identifier so "c+++" and
// "c++" target the same subject.
const markerChars = "+-"

// NormalizeSubject turns a raw identifier into a Subject. The second return
// value is false when no letter or digit remains, so arrows and emoticons
// like "<--" never become subjects.
func NormalizeSubject(raw string) (domain.Subject, bool) {
	display := strings.Join(strings.Fields(raw), " ")
	display = strings.Trim(display, markerChars)
	display = trimUnmatchedOpener(display)
	display = strings.TrimPrefix(display, "@")
	display = strings.TrimSpace(display)
	if !strings.ContainsFunc(display, isWordRune) {
		return domain.Subject{}, false
	}

	// cases.Caser is stateful, so a fresh one per call keeps this goroutine-safe.
	return domain.Subject{Key: cases.Fold().String(display), Display: display}, true
}

// trimUnmatchedOpener drops a leading quote or parenthesis that is never
// closed: `"unclosed` becomes `unclosed`.
func trimUnmatchedOpener(s string) string {
	if s == "" {
		return s
	}
	closer, ok := phraseCloser(s[0])
	if !ok || strings.IndexByte(s[1:], closer) >= 0 {
		return s
	}
	return s[1:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// subjectKey is NormalizeSubject for callers that only need the key.
func subjectKey(raw string) string {
	s, ok := NormalizeSubject(raw)
	if !ok {
		return ""
	}
	return s.Key
}
