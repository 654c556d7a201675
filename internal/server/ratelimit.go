package server

import (
	"fmt"
	"sync"
	"time"
)

type RateLimitConfig struct {
	GlobalRPS      float64
	GlobalBurst    int
	PlaybackLimit  int
	PlaybackWindow time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTimeout   time.Duration
}

type rateLimiter struct {
	global          *tokenBucket
	playbackLimit   int
	playbackWindow  time.Duration
	playbackMu      sync.Mutex
	playbackBuckets map[string]*ipLimiter
	store           counterStore
}

type ipLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

// counterStore counts events per key inside a rolling window, shared across
// replicas when backed by Redis.
type counterStore interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		playbackLimit:   cfg.PlaybackLimit,
		playbackWindow:  cfg.PlaybackWindow,
		playbackBuckets: make(map[string]*ipLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.playbackWindow <= 0 {
		rl.playbackWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.playbackLimit > 0 {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisCounterStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	}
	return rl
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

// AllowPlayback throttles manifest and segment requests per client IP.
func (r *rateLimiter) AllowPlayback(key string) (bool, time.Duration, error) {
	if r == nil || r.playbackLimit <= 0 {
		return true, 0, nil
	}
	if r.store != nil {
		allowed, retryAfter, err := r.store.Allow(fmt.Sprintf("videoflix:playback:%s", key), r.playbackLimit, r.playbackWindow)
		return allowed, retryAfter, err
	}
	if key == "" {
		key = "unknown"
	}
	r.playbackMu.Lock()
	bucket, exists := r.playbackBuckets[key]
	if !exists {
		rate := float64(r.playbackLimit) / r.playbackWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.playbackWindow.Seconds()
		}
		bucket = &ipLimiter{bucket: newTokenBucket(rate, r.playbackLimit)}
		r.playbackBuckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	r.cleanupLocked()
	r.playbackMu.Unlock()

	if bucket.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.playbackBuckets) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.playbackWindow)
	for key, bucket := range r.playbackBuckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.playbackBuckets, key)
		}
	}
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: now,
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}
