package server

import (
	"sync"
	"time"
)

// rateLimiter admits at most limit requests in any span of window.
// It keeps the arrival times of admitted requests; refused ones are not counted.
type rateLimiter struct {
	limit  int
	window time.Duration

	admitted     []time.Time
	admittedLock sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
	}
}

// admit records a request arriving at now. If it must be refused, it returns how long until
// the oldest admitted request leaves the window and makes room.
func (r *rateLimiter) admit(now time.Time) (time.Duration, bool) {
	r.admittedLock.Lock()
	defer r.admittedLock.Unlock()

	cutoff := now.Add(-r.window)

	for len(r.admitted) > 0 && !r.admitted[0].After(cutoff) {
		r.admitted = r.admitted[1:]
	}

	if len(r.admitted) >= r.limit {
		return r.admitted[0].Sub(cutoff), false
	}

	r.admitted = append(r.admitted, now)

	return 0, true
}
