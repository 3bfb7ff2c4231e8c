package services

import (
	"sync"
	"time"

	"github.com/devansh728/BYVS/internal/models"
)

// Decision is the result of a TryAcquire call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter throttles OTP issuance per phone inside this process.
type RateLimiter struct {
	policy  models.RateLimitPolicy
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*models.RateLimitWindow
}

func NewRateLimiter(policy models.RateLimitPolicy, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		policy:  policy,
		now:     now,
		windows: make(map[string]*models.RateLimitWindow),
	}
}

// TryAcquire counts one issuance for phone if both the window ceiling and
// the cooldown allow it.
func (r *RateLimiter) TryAcquire(phone string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[phone]
	if !ok {
		w = &models.RateLimitWindow{Phone: phone}
		r.windows[phone] = w
	}

	allowed, wait := w.Acquire(r.now(), r.policy)
	return Decision{Allowed: allowed, RetryAfter: wait}
}

// Prune drops windows that no longer constrain anything and returns how many
// were removed.
func (r *RateLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for phone, w := range r.windows {
		if w.Stale(now, r.policy) {
			delete(r.windows, phone)
			n++
		}
	}
	return n
}
