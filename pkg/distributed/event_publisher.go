package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultEventChannel = "matchmaking:events"

// envelope tags each event with the publishing instance.
type envelope struct {
	Source string `json:"source"`
	models.MatchmakingEvent
}

// RedisEventPublisher Redis Pub/Sub 기반 매칭 이벤트 발행자
type RedisEventPublisher struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string // 인스턴스 고유 ID
	channel    string
}

// NewRedisEventPublisher 이벤트 발행자 생성 (channel이 비어 있으면 기본 채널)
func NewRedisEventPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisEventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEventPublisher{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    channel,
	}
}

func (p *RedisEventPublisher) InstanceID() string {
	return p.instanceID
}

// Publish 매칭 이벤트 발행
func (p *RedisEventPublisher) Publish(ctx context.Context, event models.MatchmakingEvent) error {
	data, err := json.Marshal(envelope{Source: p.instanceID, MatchmakingEvent: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published matchmaking event",
		zap.String("type", string(event.Type)),
		zap.String("matchId", event.MatchID))
	return nil
}

// Subscribe 이벤트 수신. ctx가 취소될 때까지 블록됨
//
// Malformed payloads and handler errors are logged and do not stop the loop.
func (p *RedisEventPublisher) Subscribe(ctx context.Context, handler func(source string, event models.MatchmakingEvent) error) error {
	pubsub := p.client.Subscribe(ctx, p.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	p.logger.Info("Subscribed to matchmaking events",
		zap.String("instance_id", p.instanceID),
		zap.String("channel", p.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				p.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			if err := handler(env.Source, env.MatchmakingEvent); err != nil {
				p.logger.Error("Failed to handle event",
					zap.String("type", string(env.Type)),
					zap.Error(err))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SubscribePeers Subscribe와 같지만 이 인스턴스가 발행한 이벤트는 건너뜀
func (p *RedisEventPublisher) SubscribePeers(ctx context.Context, handler func(source string, event models.MatchmakingEvent) error) error {
	return p.Subscribe(ctx, func(source string, event models.MatchmakingEvent) error {
		if source == p.instanceID {
			return nil
		}
		return handler(source, event)
	})
}
