package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares limiter state across instances. Counters are fixed
// windows that expire on their own, so no sweep is needed.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) Check(ctx context.Context, identifier string, policy Policy) (Result, error) {
	now := s.now()
	countKey := s.prefix + identifier
	blockKey := s.prefix + "block:" + identifier

	blockTTL, err := s.redis.PTTL(ctx, blockKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("read block ttl: %w", err)
	}
	if blockTTL > 0 {
		windowTTL, err := s.redis.PTTL(ctx, countKey).Result()
		if err != nil {
			return Result{}, fmt.Errorf("read window ttl: %w", err)
		}
		return Result{
			Allowed:    false,
			ResetTime:  now.Add(positive(windowTTL)),
			RetryAfter: blockTTL,
		}, nil
	}

	count, err := s.redis.Incr(ctx, countKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("increment counter: %w", err)
	}

	// Fixed window: only the first hit arms the expiry.
	if count == 1 {
		if err := s.redis.PExpire(ctx, countKey, policy.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("arm window: %w", err)
		}
	}

	windowTTL, err := s.redis.PTTL(ctx, countKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("read window ttl: %w", err)
	}
	if windowTTL <= 0 {
		// A counter without expiry would never reset.
		if err := s.redis.PExpire(ctx, countKey, policy.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("repair window: %w", err)
		}
		windowTTL = policy.Window
	}
	resetTime := now.Add(windowTTL)

	if count > int64(policy.MaxRequests) {
		retryAfter := windowTTL
		if policy.BlockDuration > 0 {
			if err := s.redis.Set(ctx, blockKey, "1", policy.BlockDuration).Err(); err != nil {
				return Result{}, fmt.Errorf("set block: %w", err)
			}
			retryAfter = policy.BlockDuration
		}
		return Result{Allowed: false, ResetTime: resetTime, RetryAfter: retryAfter}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: policy.MaxRequests - int(count),
		ResetTime: resetTime,
	}, nil
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
