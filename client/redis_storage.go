package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStorageUnavailable wraps Redis failures in [RedisStorage].
var ErrStorageUnavailable = errors.New("session storage unavailable")

// RedisStorage keeps cache slots in Redis string keys with native TTLs, so
// several client processes can share one logical session.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStorage namespaces every key under prefix (default "gtc").
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "gtc"
	}
	return &RedisStorage{redis: client, prefix: prefix}
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var err error
	if ttl <= 0 {
		err = s.redis.Del(ctx, s.key(key)).Err()
	} else {
		err = s.redis.Set(ctx, s.key(key), value, ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

var (
	_ Storage = (*RedisStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
