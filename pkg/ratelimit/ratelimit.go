package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	capacity    int64         // Maximum number of tokens
	tokens      int64         // Current number of tokens
	refillEvery time.Duration // One token is added per interval
	lastRefill  time.Time
	lastUsed    time.Time
}

// NewTokenBucket creates a full bucket that regains one token per refillEvery.
func NewTokenBucket(capacity int64, refillEvery time.Duration, clock clockwork.Clock) *TokenBucket {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenBucket{
		clock:       clock,
		capacity:    capacity,
		tokens:      capacity,
		refillEvery: refillEvery,
		lastRefill:  clock.Now(),
		lastUsed:    clock.Now(),
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN checks if n requests are allowed and consumes n tokens if so
func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = tb.clock.Now()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// idle reports whether the bucket is full and untouched since before cutoff.
func (tb *TokenBucket) idle(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens == tb.capacity && tb.lastUsed.Before(cutoff)
}

// refill adds whole tokens for the elapsed intervals. lastRefill only advances by
// the intervals consumed so partial progress is kept.
func (tb *TokenBucket) refill() {
	if tb.refillEvery <= 0 {
		return
	}
	now := tb.clock.Now()
	intervals := int64(now.Sub(tb.lastRefill) / tb.refillEvery)
	if intervals <= 0 {
		return
	}

	tb.tokens += intervals
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.lastRefill = now
		return
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(intervals) * tb.refillEvery)
}

// RateLimiter manages one token bucket per key (player id).
type RateLimiter struct {
	mu              sync.RWMutex
	clock           clockwork.Clock
	buckets         map[string]*TokenBucket
	capacity        int64
	refillEvery     time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// NewRateLimiter creates a new rate limiter. Idle buckets are pruned lazily from
// Allow, at most once per cleanup interval.
func NewRateLimiter(capacity int64, refillEvery time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		clock:           clock,
		buckets:         make(map[string]*TokenBucket),
		capacity:        capacity,
		refillEvery:     refillEvery,
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     clock.Now(),
	}
}

// Allow checks if a request from the given key is allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.AllowN(key, 1)
}

// AllowN checks if n requests from the given key are allowed. The token is
// taken while rl.mu is held so cleanup can never prune a bucket in between.
func (rl *RateLimiter) AllowN(key string, n int64) bool {
	rl.maybeCleanup()

	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	if exists {
		allowed := bucket.AllowN(n)
		rl.mu.RUnlock()
		return allowed
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	bucket, exists = rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.capacity, rl.refillEvery, rl.clock)
		rl.buckets[key] = bucket
	}
	return bucket.AllowN(n)
}

func (rl *RateLimiter) maybeCleanup() {
	rl.mu.RLock()
	due := rl.clock.Since(rl.lastCleanup) >= rl.cleanupInterval
	rl.mu.RUnlock()

	if due {
		rl.cleanup()
	}
}

// cleanup removes buckets that are full and haven't been used recently
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-rl.cleanupInterval)
	for key, bucket := range rl.buckets {
		if bucket.idle(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.lastCleanup = now
}

// Reset resets the rate limit for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.buckets)
}
