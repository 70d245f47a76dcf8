package domain

import "context"

// Subject is the thing being karma'd. Key is the storage identity; Display is
// how the subject was written and is what replies show.
type Subject struct {
	Key     string
	Display string
}

// Intent is one karma token found in a message.
type Intent struct {
	Subject  Subject
	Delta    int64
	RawToken string
}

// RejectReason explains why the policy filter refused an intent.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectSelfKarma
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectSelfKarma:
		return "self_karma"
	default:
		return "unknown"
	}
}

// FilterResult is either an accepted intent or a rejection reason.
type FilterResult struct {
	Intent Intent
	Reason RejectReason
}

// Accepted reports whether the intent may be applied.
func (r FilterResult) Accepted() bool {
	return r.Reason == RejectNone
}

// ScoreEntry is a subject with its current score.
type ScoreEntry struct {
	Subject Subject
	Score   int64
}

// ScoreStore is the durable subject -> score mapping. Apply must be free of
// lost updates for concurrent callers on the same subject.
type ScoreStore interface {
	Apply(ctx context.Context, subject Subject, delta int64) (int64, error)
	Get(ctx context.Context, subject Subject) (int64, error)
}
