// Package ratelimit counts requests per identifier in fixed windows and can
// escalate to a punitive block once a window is exceeded.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Policy describes one limit. A zero BlockDuration means overflowing requests
// are only rejected until the window resets.
type Policy struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration
}

type Result struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one
// for a rejected result.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	seconds := int(math.Ceil(r.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

type Limiter interface {
	Check(ctx context.Context, identifier string, policy Policy) (Result, error)
}
