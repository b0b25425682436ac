package mlog

import (
	"sync"
	"time"
)

// RateLimit suppresses repeated diagnostics. Each named bucket lets one
// event through per interval; later events in the same bucket are dropped
// until the interval elapses. Callers own their RateLimit instance, so a
// teardown is just dropping the reference or calling Reset.
type RateLimit struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewRateLimit creates a RateLimit allowing one event per bucket per interval.
func NewRateLimit(interval time.Duration) *RateLimit {
	return &RateLimit{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether an event in the named bucket may be logged now.
func (r *RateLimit) Allow(bucket string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.last[bucket]; ok && now.Sub(t) < r.interval {
		return false
	}
	r.last[bucket] = now

	return true
}

// Reset clears all bucket state.
func (r *RateLimit) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = make(map[string]time.Time)
}
