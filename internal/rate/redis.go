package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the fixed-window [Limiter] on Redis counters, for hosts
// that run the auth layer across multiple instances. Semantics match
// [MemoryLimiter]: INCR opens or advances the window, EXPIRE is set only on
// the first hit, a full window denies without incrementing (the increment is
// compensated so the window end stays anchored to the first attempt).
//
// Backend failures fail closed: the attempt is denied with zero remaining
// and a zero ResetAt.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
	now    func() time.Time
}

// NewRedisLimiter creates a [RedisLimiter]. Keys are namespaced under prefix
// (default "agrl").
func NewRedisLimiter(redisClient redis.UniversalClient, prefix string, cfg Config, now func() time.Time) *RedisLimiter {
	if prefix == "" {
		prefix = "agrl"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
		now:    now,
	}
}

func (l *RedisLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// Check records one attempt for the identifier and decides it.
func (l *RedisLimiter) Check(ctx context.Context, identifier string) Result {
	key := l.key(identifier)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{Allowed: false}
	}

	// First hit in the window owns the TTL.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return Result{Allowed: false}
		}
	}

	if count > int64(l.config.MaxAttempts) {
		// Undo the speculative increment so the stored counter stays at the
		// budget and the TTL keeps pointing at the original window end.
		_ = l.redis.Decr(ctx, key).Err()

		ttl, err := l.redis.PTTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			return Result{Allowed: false}
		}
		return Result{Allowed: false, ResetAt: l.now().Add(ttl)}
	}

	return Result{Allowed: true, Remaining: l.config.MaxAttempts - int(count)}
}

// Reset clears the identifier's window.
func (l *RedisLimiter) Reset(ctx context.Context, identifier string) {
	_ = l.redis.Del(ctx, l.key(identifier)).Err()
}
