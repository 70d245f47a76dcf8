package domain

import (
	"context"
	"time"
)

// Activity is the last time a user was observed talking.
type Activity struct {
	UserKey string
	Display string
	Channel string
	At      time.Time
}

// SeenStore tracks last activity per user. LastSeen returns ErrNotSeen for
// unknown users.
type SeenStore interface {
	Record(ctx context.Context, activity Activity) error
	LastSeen(ctx context.Context, userKey string) (Activity, error)
}
