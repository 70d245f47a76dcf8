package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

type SeenStore struct {
	mu   sync.RWMutex
	seen map[string]domain.Activity
}

var _ domain.SeenStore = (*SeenStore)(nil)

func NewSeenStore() *SeenStore {
	return &SeenStore{seen: make(map[string]domain.Activity)}
}

// Record keeps the newest activity per user; out-of-order records are ignored.
func (s *SeenStore) Record(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.seen[activity.UserKey]; ok && prev.At.After(activity.At) {
		return nil
	}
	s.seen[activity.UserKey] = activity
	return nil
}

func (s *SeenStore) LastSeen(ctx context.Context, userKey string) (domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.seen[userKey]
	if !ok {
		return domain.Activity{}, domain.ErrNotSeen
	}
	return a, nil
}
