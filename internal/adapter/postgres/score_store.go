package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/jeremyandrews/tag1bot/internal/domain"
)

const breakerDelay = 30 * time.Second

const applyKarmaQuery = `
INSERT INTO karma (subject_key, display, score)
VALUES ($1, $2, $3)
ON CONFLICT (subject_key) DO UPDATE
SET score = karma.score + EXCLUDED.score, updated_at = now()
RETURNING score`

const getKarmaQuery = `SELECT score FROM karma WHERE subject_key = $1`

// ScoreStore keeps scores in the karma table. The upsert is a single
// statement, so row locking serializes concurrent updates to one subject.
type ScoreStore struct {
	pool    *pgxpool.Pool
	breaker *breaker
}

var _ domain.ScoreStore = (*ScoreStore)(nil)

// NewScoreStore creates the store. m may be nil.
func NewScoreStore(pool *pgxpool.Pool, m *metrics.StoreMetrics) *ScoreStore {
	return &ScoreStore{pool: pool, breaker: newBreaker(m, breakerDelay)}
}

func (s *ScoreStore) Apply(ctx context.Context, subject domain.Subject, delta int64) (int64, error) {
	var score int64
	err := s.breaker.run(func() error {
		return s.pool.QueryRow(ctx, applyKarmaQuery, subject.Key, subject.Display, delta).Scan(&score)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: apply karma: %w", domain.ErrStoreUnavailable, err)
	}
	return score, nil
}

func (s *ScoreStore) Get(ctx context.Context, subject domain.Subject) (int64, error) {
	var score int64
	err := s.breaker.run(func() error {
		return s.pool.QueryRow(ctx, getKarmaQuery, subject.Key).Scan(&score)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get karma: %w", domain.ErrStoreUnavailable, err)
	}
	return score, nil
}

// Display returns the spelling a subject was first stored under.
func (s *ScoreStore) Display(ctx context.Context, key string) (string, error) {
	var label string
	err := s.pool.QueryRow(ctx, `SELECT display FROM karma WHERE subject_key = $1`, key).Scan(&label)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get display: %w", domain.ErrStoreUnavailable, err)
	}
	return label, nil
}
