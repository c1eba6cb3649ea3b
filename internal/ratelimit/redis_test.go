package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "test:rl:"), mr
}

func TestRedisStoreWindow(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()
	policy := Policy{MaxRequests: 3, Window: time.Minute}

	for i := 1; i <= 3; i++ {
		res, err := store.Check(ctx, "refresh:ip", policy)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := store.Check(ctx, "refresh:ip", policy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
	assert.False(t, mr.Exists("test:rl:block:refresh:ip"))

	mr.FastForward(time.Minute + time.Second)
	res, err = store.Check(ctx, "refresh:ip", policy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreBlock(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()
	policy := Policy{MaxRequests: 1, Window: time.Minute, BlockDuration: 10 * time.Minute}

	_, err := store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	res, err := store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	assert.Equal(t, 10*time.Minute, res.RetryAfter)

	mr.FastForward(5 * time.Minute)
	res, err = store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5*time.Minute, res.RetryAfter)

	mr.FastForward(5*time.Minute + time.Second)
	res, err = store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreSurfacesErrors(t *testing.T) {
	store, mr := newRedisTestStore(t)
	mr.Close()

	_, err := store.Check(context.Background(), "login:ip", Policy{MaxRequests: 1, Window: time.Minute})
	assert.Error(t, err)
}

// failPTTL fails PTTL reads of one key and passes everything else through.
type failPTTL struct {
	key string
}

func (f failPTTL) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f failPTTL) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() == "pttl" && len(args) == 2 && args[1] == f.key {
			err := errors.New("pttl unavailable")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (f failPTTL) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStoreBlockedPathSurfacesWindowError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	store := NewRedisStore(rdb, "test:rl:")
	ctx := context.Background()
	policy := Policy{MaxRequests: 1, Window: time.Minute, BlockDuration: 10 * time.Minute}

	_, err = store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	res, err := store.Check(ctx, "login:ip", policy)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	rdb.AddHook(failPTTL{key: "test:rl:login:ip"})
	_, err = store.Check(ctx, "login:ip", policy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read window ttl")
}
