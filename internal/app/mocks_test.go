package app

import (
	"context"
	"sync"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

// --- Mock implementations ---

type mockScoreStore struct {
	applyFn func(ctx context.Context, subject domain.Subject, delta int64) (int64, error)
	getFn   func(ctx context.Context, subject domain.Subject) (int64, error)
}

func (m *mockScoreStore) Apply(ctx context.Context, subject domain.Subject, delta int64) (int64, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, subject, delta)
	}
	return delta, nil
}

func (m *mockScoreStore) Get(ctx context.Context, subject domain.Subject) (int64, error) {
	if m.getFn != nil {
		return m.getFn(ctx, subject)
	}
	return 0, nil
}

// mockDisplayStore adds the stored-spelling lookup to mockScoreStore.
type mockDisplayStore struct {
	mockScoreStore
	displayFn func(ctx context.Context, key string) (string, error)
}

func (m *mockDisplayStore) Display(ctx context.Context, key string) (string, error) {
	if m.displayFn != nil {
		return m.displayFn(ctx, key)
	}
	return "", nil
}

type mockSeenStore struct {
	recordFn   func(ctx context.Context, activity domain.Activity) error
	lastSeenFn func(ctx context.Context, userKey string) (domain.Activity, error)
}

func (m *mockSeenStore) Record(ctx context.Context, activity domain.Activity) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, activity)
	}
	return nil
}

func (m *mockSeenStore) LastSeen(ctx context.Context, userKey string) (domain.Activity, error) {
	if m.lastSeenFn != nil {
		return m.lastSeenFn(ctx, userKey)
	}
	return domain.Activity{}, domain.ErrNotSeen
}

type mockProcessor struct {
	processFn func(ctx context.Context, msg domain.IncomingMessage) (*domain.Reply, error)
}

func (m *mockProcessor) Process(ctx context.Context, msg domain.IncomingMessage) (*domain.Reply, error) {
	if m.processFn != nil {
		return m.processFn(ctx, msg)
	}
	return nil, nil
}

// recordingSender collects every reply it is asked to send.
type recordingSender struct {
	mu      sync.Mutex
	replies []domain.Reply
	sendFn  func(ctx context.Context, reply domain.Reply) error
}

func (s *recordingSender) SendReply(ctx context.Context, reply domain.Reply) error {
	s.mu.Lock()
	s.replies = append(s.replies, reply)
	s.mu.Unlock()
	if s.sendFn != nil {
		return s.sendFn(ctx, reply)
	}
	return nil
}

func (s *recordingSender) sent() []domain.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Reply(nil), s.replies...)
}
