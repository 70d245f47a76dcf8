package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subject(key string) domain.Subject {
	return domain.Subject{Key: key, Display: key}
}

func TestScoreStore_GetUnknownIsZero(t *testing.T) {
	s := NewScoreStore()
	score, err := s.Get(context.Background(), subject("nobody"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)
}

func TestScoreStore_ApplyReturnsNewScore(t *testing.T) {
	s := NewScoreStore()
	ctx := context.Background()

	score, err := s.Apply(ctx, subject("rust"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)

	score, err = s.Apply(ctx, subject("rust"), -3)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), score)

	score, err = s.Get(ctx, subject("rust"))
	require.NoError(t, err)
	assert.Equal(t, int64(-2), score)
}

func TestScoreStore_KeepsFirstDisplay(t *testing.T) {
	s := NewScoreStore()
	ctx := context.Background()

	_, err := s.Apply(ctx, domain.Subject{Key: "rust", Display: "Rust"}, 1)
	require.NoError(t, err)
	_, err = s.Apply(ctx, domain.Subject{Key: "rust", Display: "RUST"}, 1)
	require.NoError(t, err)

	label, err := s.Display(ctx, "rust")
	require.NoError(t, err)
	assert.Equal(t, "Rust", label)

	label, err = s.Display(ctx, "go")
	require.NoError(t, err)
	assert.Empty(t, label)
}

func TestScoreStore_ConcurrentApplyLosesNothing(t *testing.T) {
	s := NewScoreStore()
	ctx := context.Background()

	const workers, perWorker = 50, 200
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delta := int64(1)
			if w%5 == 0 {
				delta = -1
			}
			for range perWorker {
				_, err := s.Apply(ctx, subject("hot"), delta)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// 40 workers add, 10 subtract
	score, err := s.Get(ctx, subject("hot"))
	require.NoError(t, err)
	assert.Equal(t, int64(30*perWorker), score)
}

func TestScoreStore_CancelledContext(t *testing.T) {
	s := NewScoreStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Apply(ctx, subject("rust"), 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Get(ctx, subject("rust"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Display(ctx, "rust")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	score, err := s.Get(context.Background(), subject("rust"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)
}
