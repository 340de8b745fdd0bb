package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_NoLimit(t *testing.T) {
	rl := NewRateLimiter(0)
	for range 100 {
		require.NoError(t, rl.CheckRateLimit("user1"))
	}
}

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.CheckRateLimit("user1"))
	require.NoError(t, rl.CheckRateLimit("user1"))

	err := rl.CheckRateLimit("user1")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, time.Minute, rle.RetryAfter)
	assert.Equal(t, 2, rl.Requests("user1"))

	// Other clients have their own window.
	require.NoError(t, rl.CheckRateLimit("user2"))

	now = now.Add(30 * time.Second)
	err = rl.CheckRateLimit("user1")
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 30*time.Second, rle.RetryAfter)

	now = now.Add(31 * time.Second)
	require.NoError(t, rl.CheckRateLimit("user1"))
	assert.Equal(t, 1, rl.Requests("user1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	server := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	})

	called := 0
	h := server.rateLimitMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		called++
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/ingredients", nil)
	req.RemoteAddr = "192.0.2.7:5000"

	w := httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, 1, called)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	server := newTestServer(t, nil)
	assert.Nil(t, server.rateLimiter)

	h := server.rateLimitMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	for range 5 {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
