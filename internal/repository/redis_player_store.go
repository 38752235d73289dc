package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/redis/go-redis/v9"
)

var allStatuses = []models.PlayerStatus{
	models.PlayerStatusOffline,
	models.PlayerStatusOnline,
	models.PlayerStatusInGame,
}

// Lua: 존재하는 플레이어만 갱신하고, 상태별 인덱스 Set을 함께 옮긴다.
// KEYS[1]=player hash, KEYS[2..]=status index sets, ARGV[1]=status, ARGV[2]=updated_at,
// ARGV[3]=player id, ARGV[4]=index of the target set in KEYS
var updateStatusScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	for i = 2, #KEYS do
		redis.call("SREM", KEYS[i], ARGV[3])
	end
	redis.call("HSET", KEYS[1], "status", ARGV[1], "updated_at", ARGV[2])
	redis.call("SADD", KEYS[tonumber(ARGV[4])], ARGV[3])
	return 1
`)

var updateRatingScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	redis.call("HSET", KEYS[1], "rating", ARGV[1], "updated_at", ARGV[2])
	return 1
`)

// RedisPlayerStore 플레이어 상태/레이팅을 Redis Hash + 상태별 Set 으로 보관
type RedisPlayerStore struct {
	client *redis.Client
	prefix string
}

func NewRedisPlayerStore(client *redis.Client, prefix string) *RedisPlayerStore {
	if prefix == "" {
		prefix = "mm"
	}
	return &RedisPlayerStore{client: client, prefix: prefix}
}

func (s *RedisPlayerStore) keyPlayer(id string) string {
	return fmt.Sprintf("%s:player:%s", s.prefix, id)
}

func (s *RedisPlayerStore) keyStatus(status models.PlayerStatus) string {
	return fmt.Sprintf("%s:players:status:%s", s.prefix, status)
}

// SavePlayer 플레이어 레코드 생성/덮어쓰기 (등록은 외부 계층 책임, 개발/테스트용)
func (s *RedisPlayerStore) SavePlayer(ctx context.Context, p models.PlayerRecord) error {
	if !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keyPlayer(p.ID),
		"rating", p.Rating,
		"status", string(p.Status),
		"updated_at", p.UpdatedAt.UnixMilli(),
	)
	for _, st := range allStatuses {
		pipe.SRem(ctx, s.keyStatus(st), p.ID)
	}
	pipe.SAdd(ctx, s.keyStatus(p.Status), p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	return nil
}

func (s *RedisPlayerStore) FindOnlinePlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	return s.FindPlayersByStatus(ctx, models.PlayerStatusOnline)
}

// FindPlayersByStatus 상태 인덱스 Set 기준으로 조회. 인덱스와 Hash가 어긋난 항목은 건너뛴다.
func (s *RedisPlayerStore) FindPlayersByStatus(ctx context.Context, status models.PlayerStatus) ([]models.PlayerRecord, error) {
	ids, err := s.client.SMembers(ctx, s.keyStatus(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keyPlayer(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}

	players := make([]models.PlayerRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		p, err := decodePlayer(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if p.Status != status {
			continue
		}
		players = append(players, p)
	}
	return players, nil
}

func (s *RedisPlayerStore) FindPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.keyPlayer(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrPlayerNotFound
	}

	p, err := decodePlayer(id, fields)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RedisPlayerStore) UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	keys := []string{s.keyPlayer(id)}
	target := 0
	for i, st := range allStatuses {
		keys = append(keys, s.keyStatus(st))
		if st == status {
			target = i + 2
		}
	}

	n, err := updateStatusScript.Run(ctx, s.client, keys,
		string(status), time.Now().UnixMilli(), id, target).Int()
	if err != nil {
		return fmt.Errorf("failed to update player status: %w", err)
	}
	if n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func (s *RedisPlayerStore) UpdatePlayerRating(ctx context.Context, id string, rating int) error {
	n, err := updateRatingScript.Run(ctx, s.client, []string{s.keyPlayer(id)},
		rating, time.Now().UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("failed to update player rating: %w", err)
	}
	if n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func decodePlayer(id string, fields map[string]string) (models.PlayerRecord, error) {
	rating, err := strconv.Atoi(fields["rating"])
	if err != nil {
		return models.PlayerRecord{}, fmt.Errorf("player %s: bad rating %q: %w", id, fields["rating"], err)
	}

	p := models.PlayerRecord{
		ID:     id,
		Rating: rating,
		Status: models.PlayerStatus(fields["status"]),
	}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		p.UpdatedAt = time.UnixMilli(ms)
	}
	return p, nil
}
