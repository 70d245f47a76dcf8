package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// recordSeenScript overwrites the activity only if it is not older than the
// stored one.
// KEYS: [1]=seen hash
// ARGV: [1]=display, [2]=channel, [3]=unix ms
var recordSeenScript = goredis.NewScript(`
local prev = tonumber(redis.call('HGET', KEYS[1], 'at') or '0')
if prev > tonumber(ARGV[3]) then
  return 0
end
redis.call('HSET', KEYS[1], 'display', ARGV[1], 'channel', ARGV[2], 'at', ARGV[3])
return 1
`)

type SeenStore struct {
	rdb *goredis.Client
}

var _ domain.SeenStore = (*SeenStore)(nil)

func NewSeenStore(rdb *goredis.Client) *SeenStore {
	return &SeenStore{rdb: rdb}
}

func seenKey(userKey string) string {
	return "seen:" + userKey
}

func (s *SeenStore) Record(ctx context.Context, activity domain.Activity) error {
	err := recordSeenScript.Run(ctx, s.rdb, []string{seenKey(activity.UserKey)},
		activity.Display,
		activity.Channel,
		strconv.FormatInt(activity.At.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: record seen script: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SeenStore) LastSeen(ctx context.Context, userKey string) (domain.Activity, error) {
	fields, err := s.rdb.HGetAll(ctx, seenKey(userKey)).Result()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("%w: last seen: %w", domain.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return domain.Activity{}, domain.ErrNotSeen
	}

	ms, err := strconv.ParseInt(fields["at"], 10, 64)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("%w: seen %q: %w", domain.ErrStoreCorrupt, userKey, err)
	}

	return domain.Activity{
		UserKey: userKey,
		Display: fields["display"],
		Channel: fields["channel"],
		At:      time.UnixMilli(ms).UTC(),
	}, nil
}
