package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devansh728/BYVS/internal/models"
)

func TestRateLimiter_CeilingAndWindowReset(t *testing.T) {
	clock := newFakeClock()
	policy := models.RateLimitPolicy{Window: time.Hour, Ceiling: 5}
	rl := NewRateLimiter(policy, clock.Now)

	for i := 0; i < policy.Ceiling; i++ {
		assert.True(t, rl.TryAcquire(phone).Allowed, "issuance %d", i+1)
		clock.Advance(time.Minute)
	}

	d := rl.TryAcquire(phone)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Hour-5*time.Minute, d.RetryAfter)

	clock.Advance(d.RetryAfter)
	assert.True(t, rl.TryAcquire(phone).Allowed)
}

func TestRateLimiter_Cooldown(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(testPolicy, clock.Now)

	assert.True(t, rl.TryAcquire(phone).Allowed)

	clock.Advance(10 * time.Second)
	d := rl.TryAcquire(phone)
	assert.False(t, d.Allowed)
	assert.Equal(t, 35*time.Second, d.RetryAfter)

	assert.True(t, rl.TryAcquire("+15550000002").Allowed, "limits are per phone")

	clock.Advance(35 * time.Second)
	assert.True(t, rl.TryAcquire(phone).Allowed)
}

func TestRateLimiter_RetryAfterIsLaterOfWindowAndCooldown(t *testing.T) {
	clock := newFakeClock()
	policy := models.RateLimitPolicy{Window: time.Minute, Ceiling: 1, Cooldown: 90 * time.Second}
	rl := NewRateLimiter(policy, clock.Now)

	assert.True(t, rl.TryAcquire(phone).Allowed)
	clock.Advance(30 * time.Second)

	d := rl.TryAcquire(phone)
	assert.False(t, d.Allowed)
	assert.Equal(t, 60*time.Second, d.RetryAfter)
}

func TestRateLimiter_ConcurrentAcquireNeverExceedsCeiling(t *testing.T) {
	policy := models.RateLimitPolicy{Window: time.Hour, Ceiling: 5}
	rl := NewRateLimiter(policy, newFakeClock().Now)

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.TryAcquire(phone).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, policy.Ceiling, allowed)
}

func TestRateLimiter_Prune(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(testPolicy, clock.Now)

	rl.TryAcquire(phone)
	assert.Equal(t, 0, rl.Prune())

	clock.Advance(testPolicy.Window)
	assert.Equal(t, 1, rl.Prune())
	assert.True(t, rl.TryAcquire(phone).Allowed)
}
