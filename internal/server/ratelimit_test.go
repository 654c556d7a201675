package server

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustion(t *testing.T) {
	bucket := newTokenBucket(0.001, 2)
	if !bucket.Allow() || !bucket.Allow() {
		t.Fatal("burst capacity should allow two requests")
	}
	if bucket.Allow() {
		t.Fatal("expected bucket to be exhausted")
	}
}

func TestAllowPlaybackDisabled(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 10; i++ {
		allowed, _, err := rl.AllowPlayback("10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("limiter with no playback limit must always allow (allowed=%v err=%v)", allowed, err)
		}
	}
}

func TestAllowPlaybackPerKey(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{PlaybackLimit: 1, PlaybackWindow: time.Minute})

	allowed, _, err := rl.AllowPlayback("10.0.0.1")
	if err != nil || !allowed {
		t.Fatalf("first request must pass (allowed=%v err=%v)", allowed, err)
	}
	allowed, retryAfter, err := rl.AllowPlayback("10.0.0.1")
	if err != nil {
		t.Fatalf("AllowPlayback: %v", err)
	}
	if allowed {
		t.Fatal("expected second request denied")
	}
	if retryAfter <= 0 {
		t.Fatal("expected a retry-after hint")
	}

	allowed, _, err = rl.AllowPlayback("10.0.0.2")
	if err != nil || !allowed {
		t.Fatalf("other key must have its own bucket (allowed=%v err=%v)", allowed, err)
	}
}

func TestAllowRequestWithoutGlobalLimit(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !rl.AllowRequest() {
			t.Fatal("unlimited limiter must always allow")
		}
	}
}
