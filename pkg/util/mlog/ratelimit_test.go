package mlog

import (
	"testing"
	"time"
)

func TestRateLimitBuckets(t *testing.T) {
	rl := NewRateLimit(time.Hour)

	if !rl.Allow("resolve") {
		t.Error("first event in bucket was suppressed")
	}
	if rl.Allow("resolve") {
		t.Error("second event within interval was allowed")
	}

	// Distinct buckets do not interfere.
	if !rl.Allow("commit") {
		t.Error("first event in a fresh bucket was suppressed")
	}
}

func TestRateLimitInterval(t *testing.T) {
	rl := NewRateLimit(time.Millisecond)

	rl.Allow("b")
	time.Sleep(5 * time.Millisecond)
	if !rl.Allow("b") {
		t.Error("event after interval elapsed was suppressed")
	}
}

func TestRateLimitReset(t *testing.T) {
	rl := NewRateLimit(time.Hour)

	rl.Allow("b")
	rl.Reset()
	if !rl.Allow("b") {
		t.Error("event after reset was suppressed")
	}
}
