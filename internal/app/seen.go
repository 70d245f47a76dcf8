package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jonboulle/clockwork"
)

var seenCommands = []string{"seen", "!seen"}

// SeenService records when users last spoke and answers "seen <name>".
type SeenService struct {
	store domain.SeenStore
	clock clockwork.Clock
}

func NewSeenService(store domain.SeenStore, clock clockwork.Clock) *SeenService {
	return &SeenService{store: store, clock: clock}
}

// Process answers a seen query if the message is one, then records the
// author's activity. The query is answered first so users asking about
// themselves get their previous activity.
func (s *SeenService) Process(ctx context.Context, msg domain.IncomingMessage) (*domain.Reply, error) {
	var (
		reply    *domain.Reply
		queryErr error
	)
	if name, ok := seenQuery(msg.Text); ok {
		reply, queryErr = s.answer(ctx, msg, name)
	}

	return reply, errors.Join(queryErr, s.record(ctx, msg))
}

func (s *SeenService) record(ctx context.Context, msg domain.IncomingMessage) error {
	now := s.clock.Now()
	var errs []error
	for _, key := range authorKeys(msg.Author) {
		err := s.store.Record(ctx, domain.Activity{
			UserKey: key,
			Display: msg.Author.Label(),
			Channel: msg.ChannelLabel(),
			At:      now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record activity for %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SeenService) answer(ctx context.Context, msg domain.IncomingMessage, name string) (*domain.Reply, error) {
	subject, ok := NormalizeSubject(name)
	if !ok {
		return nil, nil
	}

	reply := &domain.Reply{Channel: msg.Channel, TargetThread: msg.ReplyTarget()}

	activity, err := s.store.LastSeen(ctx, subject.Key)
	switch {
	case errors.Is(err, domain.ErrNotSeen):
		reply.Text = fmt.Sprintf("I haven't seen %s.", subject.Display)
	case err != nil:
		return nil, fmt.Errorf("last seen %q: %w", subject.Key, err)
	default:
		reply.Text = fmt.Sprintf("%s was last seen in %s %s.",
			activity.Display, activity.Channel, humanize.RelTime(activity.At, s.clock.Now(), "ago", "from now"))
	}
	return reply, nil
}

// seenQuery recognizes "seen <name>" and "!seen <name>".
func seenQuery(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", false
	}
	for _, cmd := range seenCommands {
		if strings.EqualFold(fields[0], cmd) {
			return strings.TrimRight(fields[1], trailingPunct), true
		}
	}
	return "", false
}

// authorKeys lists every key a user can be looked up by.
func authorKeys(author domain.UserIdentity) []string {
	raw := []string{author.Name, author.DisplayName}
	if author.ID != "" {
		raw = append(raw, author.ID, "<@"+author.ID+">")
	}

	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, r := range raw {
		k := subjectKey(r)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
