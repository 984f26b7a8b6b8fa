// cache/cache.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

// Store is a byte store with TTLs and tag-indexed bulk invalidation.
// Implementations must be safe for concurrent use and byte-for-byte
// transparent: Get returns exactly what was passed to Set.
type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL and indexes it under
	// each tag for later bulk invalidation.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// InvalidateTag removes every key indexed under tag, and the tag index
	// itself, as one logical operation. Returns the number of keys removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)

	// Ping reports connection state.
	Ping(ctx context.Context) error
}

// RedisStore is the distributed tier, shared by every gateway instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, key)
}

func (s *RedisStore) tagKey(tag string) string {
	return fmt.Sprintf("%s:tag:%s", s.prefix, tag)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), value, ttl)
	for _, tag := range tags {
		tk := s.tagKey(tag)
		pipe.SAdd(ctx, tk, s.key(key))
		// A tag index must never expire before its longest-lived member
		pipe.ExpireGT(ctx, tk, ttl)
		pipe.ExpireNX(ctx, tk, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache entry: %w", err)
	}
	logger.Debug("Cache entry stored", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	tk := s.tagKey(tag)
	members, err := s.client.SMembers(ctx, tk).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read tag index: %w", err)
	}

	pipe := s.client.TxPipeline()
	if len(members) > 0 {
		pipe.Del(ctx, members...)
	}
	pipe.Del(ctx, tk)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to invalidate tag %s: %w", tag, err)
	}

	logger.Debug("Tag invalidated", zap.String("tag", tag), zap.Int("keys", len(members)))
	return len(members), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
