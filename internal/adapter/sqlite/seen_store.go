package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

type SeenStore struct {
	db *sql.DB
}

var _ domain.SeenStore = (*SeenStore)(nil)

func NewSeenStore(db *sql.DB) *SeenStore {
	return &SeenStore{db: db}
}

func (s *SeenStore) Record(ctx context.Context, activity domain.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen (user_key, display, channel, seen_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_key) DO UPDATE
		SET display = excluded.display, channel = excluded.channel, seen_at = excluded.seen_at
		WHERE seen.seen_at <= excluded.seen_at`,
		activity.UserKey, activity.Display, activity.Channel, activity.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: record seen: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SeenStore) LastSeen(ctx context.Context, userKey string) (domain.Activity, error) {
	a := domain.Activity{UserKey: userKey}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT display, channel, seen_at FROM seen WHERE user_key = ?`, userKey).
		Scan(&a.Display, &a.Channel, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Activity{}, domain.ErrNotSeen
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("%w: last seen: %w", domain.ErrStoreUnavailable, err)
	}
	a.At = time.UnixMilli(ms).UTC()
	return a, nil
}
