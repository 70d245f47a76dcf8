package slack

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// directory caches lookups by ID. Concurrent misses for the same ID share one
// API call; failed lookups are not cached.
type directory[T any] struct {
	fetch func(ctx context.Context, id string) (T, error)
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]T
}

func newDirectory[T any](fetch func(ctx context.Context, id string) (T, error)) *directory[T] {
	return &directory[T]{fetch: fetch, cache: make(map[string]T)}
}

func (d *directory[T]) lookup(ctx context.Context, id string) (T, error) {
	d.mu.RLock()
	v, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := d.group.Do(id, func() (any, error) {
		v, err := d.fetch(ctx, id)
		if err != nil {
			return v, err
		}
		d.mu.Lock()
		d.cache[id] = v
		d.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
