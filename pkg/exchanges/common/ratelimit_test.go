package common

import (
	"testing"
	"time"
)

func TestRateLimiterUpdateFromHeader(t *testing.T) {
	rl := NewRateLimiter(2400, time.Minute)

	rl.UpdateFromHeader("120")
	used, limit, pct := rl.Usage()
	if used != 120 || limit != 2400 {
		t.Errorf("Usage = %d/%d, want 120/2400", used, limit)
	}
	if pct != 5 {
		t.Errorf("percentage = %v, want 5", pct)
	}

	// Missing or malformed headers leave the tracked weight alone.
	rl.UpdateFromHeader("")
	rl.UpdateFromHeader("not-a-number")
	if used, _, _ := rl.Usage(); used != 120 {
		t.Errorf("Usage after bad headers = %d, want 120", used)
	}
}

func TestRateLimiterShouldDelay(t *testing.T) {
	rl := NewRateLimiter(2400, time.Minute)

	if rl.ShouldDelay() {
		t.Error("fresh limiter should not delay")
	}

	rl.UpdateFromHeader("2100")
	if rl.ShouldDelay() {
		t.Error("87.5% usage should not delay")
	}

	rl.UpdateFromHeader("2160")
	if !rl.ShouldDelay() {
		t.Error("90% usage should delay")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(2400, time.Millisecond)
	rl.UpdateFromHeader("2300")

	time.Sleep(5 * time.Millisecond)

	if used, _, pct := rl.Usage(); used != 0 || pct != 0 {
		t.Errorf("Usage after window expiry = %d (%.1f%%), want 0", used, pct)
	}
	if rl.ShouldDelay() {
		t.Error("expired window should not delay")
	}
}
