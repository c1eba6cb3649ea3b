package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleMiddleware(t *testing.T) {
	throttle := NewThrottle(0.001, 2, func(r *http.Request) string {
		return r.Header.Get("X-Client")
	}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	handler := throttle.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", nil)
		req.Header.Set("X-Client", client)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, send("a"))
	assert.Equal(t, http.StatusAccepted, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusAccepted, send("b"))
}

func TestThrottleEvictsIdleClients(t *testing.T) {
	throttle := NewThrottle(1, 1, nil, nil)
	throttle.Allow("a")

	throttle.evictIdle(time.Now())
	assert.Len(t, throttle.clients, 1)

	throttle.evictIdle(time.Now().Add(throttleClientTTL + time.Second))
	assert.Empty(t, throttle.clients)
}
