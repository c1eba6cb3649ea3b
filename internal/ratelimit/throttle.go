package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleClientTTL = 10 * time.Minute

type throttleClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a per-key token bucket for endpoints that see bursts of
// legitimate traffic, where a fixed window is too coarse.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*throttleClient
	rps     rate.Limit
	burst   int
	keyFunc func(*http.Request) string
	reject  http.HandlerFunc
}

func NewThrottle(rps float64, burst int, keyFunc func(*http.Request) string, reject http.HandlerFunc) *Throttle {
	return &Throttle{
		clients: make(map[string]*throttleClient),
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFunc: keyFunc,
		reject:  reject,
	}
}

func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	client, ok := t.clients[key]
	if !ok {
		client = &throttleClient{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.clients[key] = client
	}
	client.lastSeen = time.Now()

	return client.limiter.Allow()
}

func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow(t.keyFunc(r)) {
			t.reject(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run evicts idle buckets until ctx is cancelled.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.evictIdle(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (t *Throttle) evictIdle(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, client := range t.clients {
		if now.Sub(client.lastSeen) > throttleClientTTL {
			delete(t.clients, key)
		}
	}
}
