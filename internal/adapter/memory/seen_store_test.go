package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenStore_Unknown(t *testing.T) {
	s := NewSeenStore()
	_, err := s.LastSeen(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotSeen)
}

func TestSeenStore_KeepsNewest(t *testing.T) {
	s := NewSeenStore()
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.Activity{UserKey: "alice", Channel: "C2", At: t0.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, domain.Activity{UserKey: "alice", Channel: "C1", At: t0}))

	a, err := s.LastSeen(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "C2", a.Channel)
	assert.Equal(t, t0.Add(time.Minute), a.At)
}

func TestSeenStore_CancelledContext(t *testing.T) {
	s := NewSeenStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Record(ctx, domain.Activity{UserKey: "alice", At: time.Now()})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.LastSeen(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
