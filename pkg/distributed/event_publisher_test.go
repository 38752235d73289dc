package distributed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisEventPublisher_PublishAndSubscribe(t *testing.T) {
	client, mr := setupRedisClient(t)
	publisher := NewRedisEventPublisher(client, "", nil)
	subscriber := NewRedisEventPublisher(client, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []models.MatchmakingEvent
		sources  []string
	)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(source string, event models.MatchmakingEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, event)
			sources = append(sources, source)
			if event.Type == models.EventPlayerLeft {
				return errors.New("handler failure is logged")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultEventChannel)[DefaultEventChannel] == 1
	}, time.Second, 5*time.Millisecond)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, publisher.Publish(ctx, models.MatchmakingEvent{Type: models.EventPlayerLeft, PlayerIDs: []string{"a"}, Timestamp: ts}))
	require.NoError(t, publisher.Publish(ctx, models.MatchmakingEvent{
		Type:      models.EventMatchFound,
		MatchID:   "m1",
		PlayerIDs: []string{"a", "b"},
		Timestamp: ts,
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, models.EventMatchFound, received[1].Type)
	assert.Equal(t, "m1", received[1].MatchID)
	assert.Equal(t, []string{"a", "b"}, received[1].PlayerIDs)
	assert.True(t, ts.Equal(received[1].Timestamp))
	assert.Equal(t, publisher.InstanceID(), sources[0])
	assert.NotEqual(t, subscriber.InstanceID(), sources[0])
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestRedisEventPublisher_CustomChannel(t *testing.T) {
	client, mr := setupRedisClient(t)
	publisher := NewRedisEventPublisher(client, "custom:events", nil)

	sub := client.Subscribe(context.Background(), "custom:events")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), models.MatchmakingEvent{Type: models.EventQueueExpired}))

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "custom:events", msg.Channel)
	assert.Contains(t, msg.Payload, `"type":"queue_expired"`)
	assert.Contains(t, msg.Payload, `"source":"`+publisher.InstanceID()+`"`)
	assert.Empty(t, mr.PubSubNumSub("matchmaking:events")["matchmaking:events"])
}

func TestRedisEventPublisher_PublishError(t *testing.T) {
	client, mr := setupRedisClient(t)
	publisher := NewRedisEventPublisher(client, "", nil)
	mr.SetError("server down")
	defer mr.SetError("")

	err := publisher.Publish(context.Background(), models.MatchmakingEvent{Type: models.EventPlayerQueued})
	assert.Error(t, err)
}

func TestRedisEventPublisher_SubscribePeersSkipsOwnEvents(t *testing.T) {
	client, mr := setupRedisClient(t)
	local := NewRedisEventPublisher(client, "", nil)
	peer := NewRedisEventPublisher(client, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []string
	)
	done := make(chan error, 1)
	go func() {
		done <- local.SubscribePeers(ctx, func(source string, event models.MatchmakingEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, source+"/"+event.MatchID)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultEventChannel)[DefaultEventChannel] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, local.Publish(ctx, models.MatchmakingEvent{Type: models.EventMatchFound, MatchID: "own"}))
	require.NoError(t, peer.Publish(ctx, models.MatchmakingEvent{Type: models.EventMatchFound, MatchID: "peer"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	// pub/sub preserves order, so "own" was already delivered and dropped
	mu.Lock()
	assert.Equal(t, []string{peer.InstanceID() + "/peer"}, received)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}
