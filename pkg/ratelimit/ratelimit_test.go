package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bucket := NewTokenBucket(5, time.Second, clock)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, bucket.Allow(), "6th request should be denied")

	clock.Advance(time.Second)
	assert.True(t, bucket.Allow(), "request after refill should be allowed")
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_AllowN(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bucket := NewTokenBucket(10, 500*time.Millisecond, clock)

	assert.True(t, bucket.AllowN(10))
	assert.False(t, bucket.AllowN(1))

	// 1초 = 토큰 2개
	clock.Advance(time.Second)
	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.AllowN(1))
}

func TestTokenBucket_PartialIntervalIsKept(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bucket := NewTokenBucket(3, time.Second, clock)
	require.True(t, bucket.AllowN(3))

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	// the leftover half interval counts toward the next token
	clock.Advance(500 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucket_CapsAtCapacity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bucket := NewTokenBucket(2, time.Second, clock)
	require.True(t, bucket.AllowN(2))

	clock.Advance(time.Hour)
	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.Allow())
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	limiter := NewRateLimiter(3, time.Second, clockwork.NewFakeClock())

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("player-1"))
	}
	assert.False(t, limiter.Allow("player-1"))
	assert.True(t, limiter.Allow("player-2"))
	assert.Equal(t, 2, limiter.Len())
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, clockwork.NewFakeClock())

	limiter.Allow("test")
	limiter.Allow("test")
	require.False(t, limiter.Allow("test"))

	limiter.Reset("test")
	assert.True(t, limiter.Allow("test"))
}

func TestRateLimiter_PrunesIdleBuckets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(2, time.Second, clock)

	limiter.Allow("idle")
	clock.Advance(5 * time.Minute)
	limiter.Allow("busy")
	require.Equal(t, 2, limiter.Len())

	clock.Advance(6 * time.Minute)
	limiter.Allow("busy")

	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(100, time.Hour, clockwork.NewFakeClock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if limiter.Allow("concurrent") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 1, limiter.Len())
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	limiter := NewRateLimiter(1000000, time.Microsecond, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow("test")
	}
}

func TestRateLimiter_CleanupNeverGrantsExtraBurst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(3, time.Hour, clock)
	// prune on every call
	limiter.cleanupInterval = 0
	limiter.buckets["player"] = NewTokenBucket(3, time.Hour, clock)
	clock.Advance(time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("player") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, allowed)
	assert.Equal(t, 1, limiter.Len())
}
