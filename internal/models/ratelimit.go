package models

import "time"

// RateLimitPolicy bounds how often a code may be sent to one phone.
type RateLimitPolicy struct {
	Window   time.Duration
	Ceiling  int
	Cooldown time.Duration
}

// RateLimitWindow tracks issuances for one phone inside the current window.
type RateLimitWindow struct {
	Phone        string
	Count        int
	WindowStart  time.Time
	LastIssuedAt time.Time
}

// Acquire records an issuance if the policy permits it.
// On denial the window is left untouched and the wait until the next permitted
// issuance is returned.
func (w *RateLimitWindow) Acquire(now time.Time, p RateLimitPolicy) (bool, time.Duration) {
	if w.Count > 0 && !now.Before(w.WindowStart.Add(p.Window)) {
		w.Count = 0
	}

	var wait time.Duration
	if w.Count >= p.Ceiling {
		wait = w.WindowStart.Add(p.Window).Sub(now)
	}
	if !w.LastIssuedAt.IsZero() && p.Cooldown > 0 {
		if cd := w.LastIssuedAt.Add(p.Cooldown).Sub(now); cd > wait {
			wait = cd
		}
	}
	if wait > 0 {
		return false, wait
	}

	if w.Count == 0 {
		w.WindowStart = now
	}
	w.Count++
	w.LastIssuedAt = now
	return true, 0
}

// Stale reports whether the window and cooldown have both elapsed, so the entry
// carries no state worth keeping.
func (w *RateLimitWindow) Stale(now time.Time, p RateLimitPolicy) bool {
	return !now.Before(w.WindowStart.Add(p.Window)) && !now.Before(w.LastIssuedAt.Add(p.Cooldown))
}
