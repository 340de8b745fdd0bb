package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed one-minute windows.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	window            time.Duration
	now               func() time.Time

	clients map[string]*clientUsage
}

type clientUsage struct {
	windowStart time.Time
	requests    int
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per client.
// A non-positive limit disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		window:            time.Minute,
		now:               time.Now,
		clients:           make(map[string]*clientUsage),
	}
}

// CheckRateLimit records a request from clientID, or returns a
// *RateLimitError when the client is over its limit.
func (rl *RateLimiter) CheckRateLimit(clientID string) error {
	if rl.requestsPerMinute <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[clientID]
	if !ok || now.Sub(usage.windowStart) >= rl.window {
		usage = &clientUsage{windowStart: now}
		rl.clients[clientID] = usage
	}

	if usage.requests >= rl.requestsPerMinute {
		return &RateLimitError{
			Limit:      rl.requestsPerMinute,
			RetryAfter: rl.window - now.Sub(usage.windowStart),
		}
	}
	usage.requests++
	return nil
}

// Requests returns how many requests clientID made in its current window.
func (rl *RateLimiter) Requests(clientID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if usage, ok := rl.clients[clientID]; ok {
		return usage.requests
	}
	return 0
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d per minute, retry after: %v)", e.Limit, e.RetryAfter.Round(time.Second))
}
