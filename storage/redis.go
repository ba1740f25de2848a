package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable wraps Redis transport failures.
var ErrBackendUnavailable = errors.New("storage: backend unavailable")

// RedisStore is a [Store] backed by Redis, for deployments where the auth
// layer runs across multiple instances (for example a BFF fronting the
// marketplace API). An optional TTL makes it suitable for session-scoped
// state; zero TTL means keys persist until deleted.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced under
// prefix (default "ag").
func NewRedisStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
