package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *fakeClock) *MemoryStore {
	store := NewMemoryStore()
	store.now = clock.Now
	return store
}

var loginPolicy = Policy{MaxRequests: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute}

func TestWindowAllowsUpToMax(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)

	for i := 1; i <= loginPolicy.MaxRequests; i++ {
		res := store.CheckRateLimit("login:1.2.3.4", loginPolicy)
		require.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, loginPolicy.MaxRequests-i, res.Remaining)
		assert.Equal(t, clock.Now().Add(loginPolicy.Window), res.ResetTime)
	}

	res := store.CheckRateLimit("login:1.2.3.4", loginPolicy)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 30*time.Minute, res.RetryAfter)
	assert.Equal(t, 1800, res.RetryAfterSeconds())
}

func TestWindowPropertyAllowsExactlyMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxRequests := rapid.IntRange(1, 30).Draw(t, "max")
		window := time.Duration(rapid.IntRange(1, 3600).Draw(t, "windowSeconds")) * time.Second
		key := rapid.StringMatching(`[a-z]{1,8}:[0-9.]{7,15}`).Draw(t, "key")

		clock := newFakeClock()
		store := newTestStore(clock)
		policy := Policy{MaxRequests: maxRequests, Window: window}

		for n := 1; n <= maxRequests; n++ {
			res := store.CheckRateLimit(key, policy)
			if !res.Allowed || res.Remaining != maxRequests-n {
				t.Fatalf("request %d: allowed=%v remaining=%d", n, res.Allowed, res.Remaining)
			}
		}
		if store.CheckRateLimit(key, policy).Allowed {
			t.Fatalf("request %d should be rejected", maxRequests+1)
		}
	})
}

func TestWindowResetsWithoutBlock(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)
	policy := Policy{MaxRequests: 2, Window: time.Minute}

	store.CheckRateLimit("refresh:ip", policy)
	store.CheckRateLimit("refresh:ip", policy)

	clock.Advance(20 * time.Second)
	res := store.CheckRateLimit("refresh:ip", policy)
	require.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	clock.Advance(40 * time.Second)
	res = store.CheckRateLimit("refresh:ip", policy)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestBlockOutlivesWindow(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)

	for i := 0; i <= loginPolicy.MaxRequests; i++ {
		store.CheckRateLimit("login:ip", loginPolicy)
	}

	// A fresh window would have started at 15 minutes; the block holds to 30.
	clock.Advance(20 * time.Minute)
	res := store.CheckRateLimit("login:ip", loginPolicy)
	require.False(t, res.Allowed)
	assert.Equal(t, 10*time.Minute, res.RetryAfter)

	clock.Advance(10*time.Minute + time.Second)
	res = store.CheckRateLimit("login:ip", loginPolicy)
	assert.True(t, res.Allowed)
	assert.Equal(t, loginPolicy.MaxRequests-1, res.Remaining)
}

func TestBlockPropertyRejectsUntilBlockedUntil(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxRequests := rapid.IntRange(1, 10).Draw(t, "max")
		window := time.Duration(rapid.IntRange(1, 60).Draw(t, "windowMinutes")) * time.Minute
		block := window + time.Duration(rapid.IntRange(1, 120).Draw(t, "extraBlockMinutes"))*time.Minute
		policy := Policy{MaxRequests: maxRequests, Window: window, BlockDuration: block}

		clock := newFakeClock()
		store := newTestStore(clock)
		for i := 0; i <= maxRequests; i++ {
			store.CheckRateLimit("k", policy)
		}

		probe := time.Duration(rapid.Int64Range(0, int64(block)-1).Draw(t, "probe"))
		clock.Advance(probe)
		if store.CheckRateLimit("k", policy).Allowed {
			t.Fatalf("allowed at %v inside a %v block", probe, block)
		}
	})
}

func TestKeysAreIndependent(t *testing.T) {
	store := newTestStore(newFakeClock())
	policy := Policy{MaxRequests: 1, Window: time.Minute}

	assert.True(t, store.CheckRateLimit("login:a", policy).Allowed)
	assert.False(t, store.CheckRateLimit("login:a", policy).Allowed)
	assert.True(t, store.CheckRateLimit("login:b", policy).Allowed)
}

func TestSweepKeepsLiveAndBlockedEntries(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)

	store.CheckRateLimit("expired", Policy{MaxRequests: 5, Window: time.Minute})
	store.CheckRateLimit("live", Policy{MaxRequests: 5, Window: time.Hour})
	blocked := Policy{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Hour}
	store.CheckRateLimit("blocked", blocked)
	store.CheckRateLimit("blocked", blocked)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentChecksNeverOverAdmit(t *testing.T) {
	store := NewMemoryStore()
	policy := Policy{MaxRequests: 50, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Check(context.Background(), "burst", policy)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
