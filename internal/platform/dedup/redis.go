// Package dedup remembers processed inbound message ids.
package dedup

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 72 * time.Hour

// RedisStore keeps one key per processed message with a TTL.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore namespaces keys with prefix. A non-positive ttl uses 72h.
func NewRedisStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return n > 0, nil
}

// Mark records key. Marking twice is harmless.
func (s *RedisStore) Mark(ctx context.Context, key string) error {
	if err := s.rdb.SetNX(ctx, s.prefix+key, "1", s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis setnx")
	}
	return nil
}
