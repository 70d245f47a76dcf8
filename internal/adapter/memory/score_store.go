// Package memory provides process-local stores for single-instance
// deployments and tests. State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

const stripes = 64

type scoreShard struct {
	mu     sync.Mutex
	scores map[string]int64
	labels map[string]string
}

// ScoreStore keeps scores in lock-striped maps so updates to unrelated
// subjects never contend.
type ScoreStore struct {
	shards [stripes]scoreShard
}

var _ domain.ScoreStore = (*ScoreStore)(nil)

func NewScoreStore() *ScoreStore {
	s := &ScoreStore{}
	for i := range s.shards {
		s.shards[i].scores = make(map[string]int64)
		s.shards[i].labels = make(map[string]string)
	}
	return s
}

func (s *ScoreStore) shard(key string) *scoreShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%stripes]
}

func (s *ScoreStore) Apply(ctx context.Context, subject domain.Subject, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	sh := s.shard(subject.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.scores[subject.Key] += delta
	if _, ok := sh.labels[subject.Key]; !ok {
		sh.labels[subject.Key] = subject.Display
	}
	return sh.scores[subject.Key], nil
}

func (s *ScoreStore) Get(ctx context.Context, subject domain.Subject) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	sh := s.shard(subject.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.scores[subject.Key], nil
}

// Display returns the spelling a subject was first stored under, or ""
// when the key has never been stored.
func (s *ScoreStore) Display(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.labels[key], nil
}
