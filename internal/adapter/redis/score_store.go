package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	scoresKey  = "karma:scores"
	displayKey = "karma:display"
)

// applyKarmaScript increments the score and remembers the first spelling.
// KEYS: [1]=scores hash, [2]=display hash
// ARGV: [1]=subject key, [2]=delta, [3]=display
var applyKarmaScript = goredis.NewScript(`
local score = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[3])
return score
`)

type ScoreStore struct {
	rdb *goredis.Client
}

var _ domain.ScoreStore = (*ScoreStore)(nil)

func NewScoreStore(rdb *goredis.Client) *ScoreStore {
	return &ScoreStore{rdb: rdb}
}

func (s *ScoreStore) Apply(ctx context.Context, subject domain.Subject, delta int64) (int64, error) {
	score, err := applyKarmaScript.Run(ctx, s.rdb, []string{scoresKey, displayKey},
		subject.Key,
		strconv.FormatInt(delta, 10),
		subject.Display,
	).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, fmt.Errorf("%w: %q: %w", domain.ErrStoreCorrupt, subject.Key, err)
		}
		return 0, fmt.Errorf("%w: apply karma script: %w", domain.ErrStoreUnavailable, err)
	}
	return score, nil
}

func (s *ScoreStore) Get(ctx context.Context, subject domain.Subject) (int64, error) {
	raw, err := s.rdb.HGet(ctx, scoresKey, subject.Key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get karma: %w", domain.ErrStoreUnavailable, err)
	}

	score, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", domain.ErrStoreCorrupt, subject.Key, err)
	}
	return score, nil
}

// Display returns the spelling a subject was first stored under.
func (s *ScoreStore) Display(ctx context.Context, key string) (string, error) {
	label, err := s.rdb.HGet(ctx, displayKey, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get display: %w", domain.ErrStoreUnavailable, err)
	}
	return label, nil
}
