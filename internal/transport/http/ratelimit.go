package http

import "time"

// frameLimiter caps inbound frames per connection per minute. It is owned by
// a single read loop, so no locking is needed.
type frameLimiter struct {
	limit       int
	counter     int
	windowStart time.Time
}

func newFrameLimiter(limit int) *frameLimiter {
	return &frameLimiter{limit: limit}
}

func (r *frameLimiter) allow(now time.Time) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
