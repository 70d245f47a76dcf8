package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/jeremyandrews/tag1bot/internal/domain"
)

// KarmaOptions tunes the karma policy.
type KarmaOptions struct {
	// MergeDuplicates collapses repeated subjects in one message into a single
	// net update. Off by default: every token is applied independently.
	MergeDuplicates bool
}

// KarmaService recognizes karma tokens in chat messages, applies them to the
// score store and composes the acknowledgement.
type KarmaService struct {
	store    domain.ScoreStore
	composer *Composer
	opts     KarmaOptions
	metrics  *metrics.KarmaMetrics
}

// NewKarmaService creates the karma processor. m may be nil.
func NewKarmaService(store domain.ScoreStore, composer *Composer, opts KarmaOptions, m *metrics.KarmaMetrics) *KarmaService {
	return &KarmaService{
		store:    store,
		composer: composer,
		opts:     opts,
		metrics:  m,
	}
}

// displayLookup is implemented by stores that remember the spelling a
// subject was first stored under.
type displayLookup interface {
	Display(ctx context.Context, key string) (string, error)
}

// Process handles one message. It returns a nil reply when the message has no
// karma tokens or nothing could be applied or rejected. Store failures are
// joined into the returned error; the reply then covers only the intents that
// succeeded.
//
// "!karma <subject>" is answered as a query only when the message carries no
// karma tokens, so "!karma bob++" still votes.
func (s *KarmaService) Process(ctx context.Context, msg domain.IncomingMessage) (*domain.Reply, error) {
	intents := ParseKarma(msg.Text)
	if len(intents) == 0 {
		subject, ok := karmaQuery(msg.Text)
		if !ok {
			return nil, nil
		}
		return s.answerQuery(ctx, msg, subject)
	}
	if s.opts.MergeDuplicates {
		intents = MergeIntents(intents)
	}

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, intent := range intents {
		result := FilterIntent(intent, msg.Author)
		if !result.Accepted() {
			slog.DebugContext(ctx, "Karma intent rejected", "subject", intent.Subject.Key, "author", msg.Author.ID, "reason", result.Reason.String())
			s.metrics.ObserveIntent(metrics.OutcomeRejected)
			outcomes = append(outcomes, Outcome{Subject: intent.Subject, Delta: intent.Delta, Reason: result.Reason})
			continue
		}

		score, err := s.store.Apply(ctx, intent.Subject, intent.Delta)
		if err != nil {
			slog.ErrorContext(ctx, "ApplyKarma failed", "subject", intent.Subject.Key, "delta", intent.Delta, "error", err)
			s.metrics.ObserveIntent(metrics.OutcomeFailed)
			errs = append(errs, fmt.Errorf("apply karma to %q: %w", intent.Subject.Key, err))
			continue
		}

		s.metrics.ObserveIntent(metrics.OutcomeApplied)
		outcomes = append(outcomes, Outcome{Subject: intent.Subject, Delta: intent.Delta, Score: score})
	}

	err := errors.Join(errs...)
	if len(outcomes) == 0 {
		return nil, err
	}

	return &domain.Reply{
		Channel:      msg.Channel,
		TargetThread: msg.ReplyTarget(),
		Text:         s.composer.Compose(outcomes),
	}, err
}

const queryCommand = "!karma"

// karmaQuery recognizes "!karma <subject>". It reports false when the
// command has no usable subject.
func karmaQuery(text string) (domain.Subject, bool) {
	text = strings.TrimSpace(text)
	cmd, rest, found := strings.Cut(text, " ")
	if !found || !strings.EqualFold(cmd, queryCommand) {
		return domain.Subject{}, false
	}
	return NormalizeSubject(strings.Trim(strings.TrimSpace(rest), `"()`))
}

func (s *KarmaService) answerQuery(ctx context.Context, msg domain.IncomingMessage, subject domain.Subject) (*domain.Reply, error) {
	entry, err := s.Score(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{
		Channel:      msg.Channel,
		TargetThread: msg.ReplyTarget(),
		Text:         fmt.Sprintf("`%s` has `%d` karma.", entry.Subject.Display, entry.Score),
	}, nil
}

// Score reads the current score and, when the store keeps one, the spelling
// the subject was first stored under. The caller's spelling is used when none
// is stored.
func (s *KarmaService) Score(ctx context.Context, subject domain.Subject) (domain.ScoreEntry, error) {
	score, err := s.store.Get(ctx, subject)
	if err != nil {
		return domain.ScoreEntry{}, fmt.Errorf("get karma for %q: %w", subject.Key, err)
	}

	if d, ok := s.store.(displayLookup); ok {
		label, err := d.Display(ctx, subject.Key)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Display lookup failed", "subject", subject.Key, "error", err)
		case label != "":
			subject.Display = label
		}
	}
	return domain.ScoreEntry{Subject: subject, Score: score}, nil
}
