package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/jeremyandrews/tag1bot/internal/domain"
)

const backendName = "sqlite"

type ScoreStore struct {
	db      *sql.DB
	metrics *metrics.StoreMetrics
}

var _ domain.ScoreStore = (*ScoreStore)(nil)

// NewScoreStore creates the store. m may be nil.
func NewScoreStore(db *sql.DB, m *metrics.StoreMetrics) *ScoreStore {
	return &ScoreStore{db: db, metrics: m}
}

func (s *ScoreStore) Apply(ctx context.Context, subject domain.Subject, delta int64) (int64, error) {
	start := time.Now()
	var score int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO karma (subject_key, display, score) VALUES (?, ?, ?)
		ON CONFLICT (subject_key) DO UPDATE
		SET score = score + excluded.score, updated_at = datetime('now')
		RETURNING score`,
		subject.Key, subject.Display, delta,
	).Scan(&score)
	s.metrics.ObserveOp(backendName, "apply", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("%w: apply karma: %w", domain.ErrStoreUnavailable, err)
	}
	return score, nil
}

func (s *ScoreStore) Get(ctx context.Context, subject domain.Subject) (int64, error) {
	start := time.Now()
	var score int64
	err := s.db.QueryRowContext(ctx, `SELECT score FROM karma WHERE subject_key = ?`, subject.Key).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	s.metrics.ObserveOp(backendName, "get", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("%w: get karma: %w", domain.ErrStoreUnavailable, err)
	}
	return score, nil
}

// Display returns the spelling a subject was first stored under.
func (s *ScoreStore) Display(ctx context.Context, key string) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx, `SELECT display FROM karma WHERE subject_key = ?`, key).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get display: %w", domain.ErrStoreUnavailable, err)
	}
	return label, nil
}
