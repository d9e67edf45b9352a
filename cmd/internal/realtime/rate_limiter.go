package realtime

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit events per sliding window. It keeps the
// admission times of the last limit events in a ring, so the oldest one
// decides whether the window has room.
type RateLimiter struct {
	mu     sync.Mutex
	ring   []time.Time
	next   int
	full   bool
	window time.Duration
}

// NewRateLimiter falls back to the package defaults for non-positive inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{ring: make([]time.Time, limit), window: window}
}

// Limit is the number of events admitted per window.
func (r *RateLimiter) Limit() int { return len(r.ring) }

// Allow records an event at now and reports whether it was admitted.
// Rejected events are not recorded.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// An event exactly one window old no longer counts.
	if r.full && r.ring[r.next].After(now.Add(-r.window)) {
		return false
	}
	r.ring[r.next] = now
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.full = true
	}
	return true
}
