package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	MaxLoginAttempts = 5
	LockoutDuration  = 15 * time.Minute
)

// AttemptTracker counts failed logins per normalized email and locks the
// account out once the threshold is reached.
type AttemptTracker interface {
	LockedUntil(ctx context.Context, email string) (time.Time, bool, error)
	// RecordFailure returns the updated count. lockedUntil is zero unless this
	// failure triggered a lockout.
	RecordFailure(ctx context.Context, email string) (attempts int, lockedUntil time.Time, err error)
	Reset(ctx context.Context, email string) error
}

type attemptEntry struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

type MemoryAttemptTracker struct {
	mu          sync.Mutex
	entries     map[string]*attemptEntry
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewMemoryAttemptTracker() *MemoryAttemptTracker {
	return &MemoryAttemptTracker{
		entries:     make(map[string]*attemptEntry),
		maxAttempts: MaxLoginAttempts,
		lockout:     LockoutDuration,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *MemoryAttemptTracker) LockedUntil(_ context.Context, email string) (time.Time, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.live(email, t.now())
	if entry == nil || entry.lockedUntil.IsZero() {
		return time.Time{}, false, nil
	}
	return entry.lockedUntil, true, nil
}

func (t *MemoryAttemptTracker) RecordFailure(_ context.Context, email string) (int, time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry := t.live(email, now)
	if entry == nil {
		entry = &attemptEntry{}
		t.entries[email] = entry
	}

	entry.count++
	entry.lastFailure = now
	if entry.count >= t.maxAttempts && entry.lockedUntil.IsZero() {
		entry.lockedUntil = now.Add(t.lockout)
		return entry.count, entry.lockedUntil, nil
	}

	return entry.count, time.Time{}, nil
}

func (t *MemoryAttemptTracker) Reset(_ context.Context, email string) error {
	t.mu.Lock()
	delete(t.entries, email)
	t.mu.Unlock()
	return nil
}

// Sweep drops expired lockouts and failure counts older than the lockout
// window.
func (t *MemoryAttemptTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for email, entry := range t.entries {
		if t.expired(entry, now) {
			delete(t.entries, email)
			removed++
		}
	}
	return removed
}

func (t *MemoryAttemptTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// live returns the entry for email, discarding it first if it has expired.
// Callers hold t.mu.
func (t *MemoryAttemptTracker) live(email string, now time.Time) *attemptEntry {
	entry, ok := t.entries[email]
	if !ok {
		return nil
	}
	if t.expired(entry, now) {
		delete(t.entries, email)
		return nil
	}
	return entry
}

func (t *MemoryAttemptTracker) expired(entry *attemptEntry, now time.Time) bool {
	if !entry.lockedUntil.IsZero() {
		return !now.Before(entry.lockedUntil)
	}
	return !now.Before(entry.lastFailure.Add(t.lockout))
}

// RedisAttemptTracker keeps the counter and the lockout as two expiring keys
// so several instances share one view of an account.
type RedisAttemptTracker struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewRedisAttemptTracker(client redis.UniversalClient, prefix string) *RedisAttemptTracker {
	if prefix == "" {
		prefix = "la:"
	}
	return &RedisAttemptTracker{
		redis:       client,
		prefix:      prefix,
		maxAttempts: MaxLoginAttempts,
		lockout:     LockoutDuration,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *RedisAttemptTracker) LockedUntil(ctx context.Context, email string) (time.Time, bool, error) {
	ttl, err := t.redis.PTTL(ctx, t.lockKey(email)).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read lockout ttl: %w", err)
	}
	if ttl <= 0 {
		return time.Time{}, false, nil
	}
	return t.now().Add(ttl), true, nil
}

func (t *RedisAttemptTracker) RecordFailure(ctx context.Context, email string) (int, time.Time, error) {
	countKey := t.countKey(email)

	count, err := t.redis.Incr(ctx, countKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment login attempts: %w", err)
	}
	if err := t.redis.PExpire(ctx, countKey, t.lockout).Err(); err != nil {
		return 0, time.Time{}, fmt.Errorf("expire login attempts: %w", err)
	}

	if int(count) < t.maxAttempts {
		return int(count), time.Time{}, nil
	}

	set, err := t.redis.SetNX(ctx, t.lockKey(email), "1", t.lockout).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("set lockout: %w", err)
	}
	if err := t.redis.Del(ctx, countKey).Err(); err != nil {
		return 0, time.Time{}, fmt.Errorf("clear login attempts: %w", err)
	}
	if !set {
		return int(count), time.Time{}, nil
	}

	return int(count), t.now().Add(t.lockout), nil
}

func (t *RedisAttemptTracker) Reset(ctx context.Context, email string) error {
	if err := t.redis.Del(ctx, t.countKey(email), t.lockKey(email)).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (t *RedisAttemptTracker) countKey(email string) string {
	return t.prefix + email
}

func (t *RedisAttemptTracker) lockKey(email string) string {
	return t.prefix + "lock:" + email
}
