package ratelimit

import (
	"context"
	"sync"
	"time"
)

const DefaultSweepInterval = 5 * time.Minute

type entry struct {
	count        int
	resetTime    time.Time
	blockedUntil time.Time
}

// MemoryStore keeps limiter state in process memory. Restarting the process
// resets every counter and block.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Check(_ context.Context, identifier string, policy Policy) (Result, error) {
	return s.CheckRateLimit(identifier, policy), nil
}

func (s *MemoryStore) CheckRateLimit(identifier string, policy Policy) Result {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[identifier]
	if ok && current.blockedUntil.After(now) {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  current.resetTime,
			RetryAfter: current.blockedUntil.Sub(now),
		}
	}

	if !ok || !now.Before(current.resetTime) {
		current = &entry{count: 1, resetTime: now.Add(policy.Window)}
		s.entries[identifier] = current
		return Result{
			Allowed:   true,
			Remaining: max(policy.MaxRequests-1, 0),
			ResetTime: current.resetTime,
		}
	}

	current.count++
	if current.count > policy.MaxRequests {
		retryAfter := current.resetTime.Sub(now)
		if policy.BlockDuration > 0 {
			current.blockedUntil = now.Add(policy.BlockDuration)
			retryAfter = policy.BlockDuration
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  current.resetTime,
			RetryAfter: retryAfter,
		}
	}

	return Result{
		Allowed:   true,
		Remaining: policy.MaxRequests - current.count,
		ResetTime: current.resetTime,
	}
}

// Sweep drops entries whose window and block have both passed and returns how
// many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.Before(e.resetTime) || e.blockedUntil.After(now) {
			continue
		}
		delete(s.entries, key)
		removed++
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
