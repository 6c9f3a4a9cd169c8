package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(5), 5)
	ip := "192.168.1.1"

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ip), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ip), "burst exhausted")
	assert.True(t, limiter.Allow("192.168.1.2"), "each IP has its own budget")
}

func TestRateLimiterRefillAndPrune(t *testing.T) {
	now := time.Unix(1754582400, 0)
	limiter := NewRateLimiter(rate.Limit(10), 2)
	limiter.now = func() time.Time { return now }
	ip := "192.168.1.1"

	assert.True(t, limiter.Allow(ip))
	assert.True(t, limiter.Allow(ip))
	allowed, retryAfter := limiter.AllowWithRetry(ip)
	assert.False(t, allowed)
	assert.Equal(t, 100*time.Millisecond, retryAfter)

	now = now.Add(150 * time.Millisecond)
	assert.True(t, limiter.Allow(ip), "one token refilled")

	assert.Equal(t, 1, limiter.Prune())
	now = now.Add(10 * time.Minute)
	assert.Equal(t, 0, limiter.Prune())
}
