package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/allihive/ft-transcendence-sub001/internal/repository"
	"github.com/allihive/ft-transcendence-sub001/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSchedulerTestService(t *testing.T, store PlayerStore) *MatchmakingService {
	t.Helper()
	opts := DefaultOptions()
	opts.MatchTimeout = 50 * time.Millisecond
	opts.Tolerance = NewTolerancePolicy(50, 0, opts.MatchTimeout, 3)
	svc, err := NewMatchmakingService(store, opts)
	require.NoError(t, err)
	return svc
}

func TestScheduler_RunsMatchAndCleanupTicks(t *testing.T) {
	store := repository.NewMemoryPlayerStore(nil)
	store.Register("a", 100)
	store.Register("b", 110)
	store.Register("idle", 5000)
	svc := newSchedulerTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.JoinQueue(ctx, "a"))
	require.NoError(t, svc.JoinQueue(ctx, "b"))

	sched, err := NewScheduler(svc, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	sched.Start(ctx)
	defer func() { assert.NoError(t, sched.Stop()) }()

	assert.Eventually(t, func() bool {
		return len(svc.ActiveMatches()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// idle waits past the fallback with nobody left to play, then expires
	require.NoError(t, svc.JoinQueue(ctx, "idle"))
	assert.Eventually(t, func() bool {
		return !svc.InQueue("idle")
	}, 3*time.Second, 20*time.Millisecond)

	p, err := store.FindPlayer(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, "OFFLINE", string(p.Status))
}

func TestScheduler_FailedTickDoesNotStopLaterTicks(t *testing.T) {
	store := newFlakyStore(repository.NewMemoryPlayerStore(nil))
	store.Register("a", 100)
	store.Register("b", 100)
	svc := newSchedulerTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.JoinQueue(ctx, "a"))
	require.NoError(t, svc.JoinQueue(ctx, "b"))

	store.mu.Lock()
	store.failOnline = true
	store.mu.Unlock()

	sched, err := NewScheduler(svc, 10*time.Millisecond, time.Hour, zap.NewNop())
	require.NoError(t, err)
	sched.Start(ctx)
	defer func() { assert.NoError(t, sched.Stop()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, svc.ActiveMatches())

	store.heal()
	assert.Eventually(t, func() bool {
		return len(svc.ActiveMatches()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// gatedStore blocks the first online-player read until release is closed.
type gatedStore struct {
	*repository.MemoryPlayerStore

	reads   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) FindOnlinePlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	if g.reads.Add(1) == 1 {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.MemoryPlayerStore.FindOnlinePlayers(ctx)
}

// tickRecorder counts finished ticks per job.
type tickRecorder struct {
	metrics.MatchmakingMetrics

	mu       sync.Mutex
	finished map[string]int
}

func (r *tickRecorder) ObserveTickElapsedTime(job string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[job]++
}

func (r *tickRecorder) count(job string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished[job]
}

func (r *tickRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.finished {
		n += c
	}
	return n
}

func TestScheduler_SkipsTicksWhileOneIsRunning(t *testing.T) {
	store := &gatedStore{
		MemoryPlayerStore: repository.NewMemoryPlayerStore(nil),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	store.Register("low", 100)
	store.Register("high", 5000)
	ticks := &tickRecorder{MatchmakingMetrics: metrics.NewNoopMetrics(), finished: make(map[string]int)}

	// 1시간 타임아웃: 테스트 중에는 매칭도 만료도 일어나지 않음
	opts := DefaultOptions()
	opts.MatchTimeout = time.Hour
	opts.Tolerance = NewTolerancePolicy(50, 0, opts.MatchTimeout, 3)
	svc, err := NewMatchmakingService(store, opts, WithMetrics(ticks))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.JoinQueue(ctx, "low"))
	require.NoError(t, svc.JoinQueue(ctx, "high"))

	sched, err := NewScheduler(svc, 10*time.Millisecond, 15*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	sched.Start(ctx)
	released := false
	defer func() {
		if !released {
			close(store.release)
		}
		assert.NoError(t, sched.Stop())
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick reached the store")
	}

	// ~20 intervals pass while the first tick holds the store
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), store.reads.Load(), "no other tick may enter while one runs")
	assert.Zero(t, ticks.total())

	close(store.release)
	released = true

	require.Eventually(t, func() bool { return ticks.total() >= 1 }, time.Second, time.Millisecond)
	// skipped ticks are not replayed back to back after the release
	assert.Less(t, ticks.total(), 5)

	assert.Eventually(t, func() bool {
		return ticks.count("find_matches") >= 2 && ticks.count("cleanup_queue") >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, svc.ActiveMatches())
}

func TestNewScheduler_RejectsNonPositiveIntervals(t *testing.T) {
	svc := newSchedulerTestService(t, repository.NewMemoryPlayerStore(nil))

	_, err := NewScheduler(svc, 0, time.Second, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewScheduler(svc, time.Second, -time.Second, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
