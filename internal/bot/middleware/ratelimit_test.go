package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("g1:u1"))
	assert.True(t, rl.Allow("g1:u1"))
	assert.False(t, rl.Allow("g1:u1"))
	assert.True(t, rl.Allow("g1:u2"), "другой участник не затронут")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("g1:u1"))
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("g1:u1")

	now = now.Add(2 * time.Minute)
	rl.sweep()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}
