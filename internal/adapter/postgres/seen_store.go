package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeremyandrews/tag1bot/internal/domain"
)

// Older activity never overwrites newer activity.
const recordSeenQuery = `
INSERT INTO seen (user_key, display, channel, seen_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_key) DO UPDATE
SET display = EXCLUDED.display, channel = EXCLUDED.channel, seen_at = EXCLUDED.seen_at
WHERE seen.seen_at <= EXCLUDED.seen_at`

const lastSeenQuery = `SELECT display, channel, seen_at FROM seen WHERE user_key = $1`

type SeenStore struct {
	pool *pgxpool.Pool
}

var _ domain.SeenStore = (*SeenStore)(nil)

func NewSeenStore(pool *pgxpool.Pool) *SeenStore {
	return &SeenStore{pool: pool}
}

func (s *SeenStore) Record(ctx context.Context, activity domain.Activity) error {
	_, err := s.pool.Exec(ctx, recordSeenQuery, activity.UserKey, activity.Display, activity.Channel, activity.At)
	if err != nil {
		return fmt.Errorf("%w: record seen: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SeenStore) LastSeen(ctx context.Context, userKey string) (domain.Activity, error) {
	a := domain.Activity{UserKey: userKey}
	err := s.pool.QueryRow(ctx, lastSeenQuery, userKey).Scan(&a.Display, &a.Channel, &a.At)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, domain.ErrNotSeen
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("%w: last seen: %w", domain.ErrStoreUnavailable, err)
	}
	a.At = a.At.UTC()
	return a, nil
}
