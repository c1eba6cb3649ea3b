package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
)

type fakeTokens struct {
	cleared int64
	err     error
	calls   []time.Time
}

func (f *fakeTokens) ClearExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	f.calls = append(f.calls, now)
	return f.cleared, f.err
}

type fixedSweeper int

func (s fixedSweeper) Sweep() int { return int(s) }

func newRouter(h *CleanupHandler) http.Handler {
	r := chi.NewRouter()
	r.Mount("/internal/maintenance", h.Routes())
	return r
}

func call(router http.Handler, method, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/internal/maintenance/cleanup", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCleanupHiddenWithoutSecret(t *testing.T) {
	h := NewCleanupHandler(&fakeTokens{}, nil, nil, observability.NewLoggerTo(&bytes.Buffer{}, "info"), "  ")
	rec := call(newRouter(h), http.MethodPost, "Bearer anything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupRequiresBearerSecret(t *testing.T) {
	tokens := &fakeTokens{}
	router := newRouter(NewCleanupHandler(tokens, nil, nil, observability.NewLoggerTo(&bytes.Buffer{}, "info"), "cron-secret"))

	for _, header := range []string{"", "cron-secret", "Basic cron-secret", "Bearer wrong", "Bearer cron-secret-extra"} {
		rec := call(router, http.MethodGet, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
	assert.Empty(t, tokens.calls)

	assert.Equal(t, http.StatusMethodNotAllowed, call(router, http.MethodDelete, "Bearer cron-secret").Code)
}

func TestCleanupSweepsAndClears(t *testing.T) {
	logs := &bytes.Buffer{}
	tokens := &fakeTokens{cleared: 4}
	limiter := ratelimit.NewMemoryStore()
	limiter.CheckRateLimit("login:203.0.113.7", ratelimit.Policy{MaxRequests: 5, Window: -time.Second})

	h := NewCleanupHandler(tokens, limiter, fixedSweeper(2), observability.NewLoggerTo(logs, "info"), "cron-secret")
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	rec := call(newRouter(h), http.MethodPost, "bearer cron-secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp cleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, Result{SweptRateLimits: 1, SweptLoginAttempts: 2, ClearedRefreshTokens: 4}, resp.Result)
	assert.Equal(t, []time.Time{now}, tokens.calls)
	assert.Zero(t, limiter.Len())
	assert.Contains(t, logs.String(), "cleanup_completed")
}

func TestCleanupFailure(t *testing.T) {
	h := NewCleanupHandler(&fakeTokens{err: errors.New("db down")}, nil, nil, observability.NewLoggerTo(&bytes.Buffer{}, "info"), "cron-secret")
	rec := call(newRouter(h), http.MethodGet, "Bearer cron-secret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
