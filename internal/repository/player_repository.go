package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/allihive/ft-transcendence-sub001/pkg/database"
	"github.com/lib/pq"
)

var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository Postgres 기반 플레이어 상태/레이팅 저장소.
// 테이블 스키마는 외부 영속성 계층이 소유한다.
type PlayerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindOnlinePlayers ONLINE 상태 플레이어 목록
func (r *PlayerRepository) FindOnlinePlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	query := `
		SELECT id, rating, status, updated_at
		FROM players
		WHERE status = $1
		ORDER BY rating ASC, id ASC
	`
	return r.queryPlayers(ctx, query, models.PlayerStatusOnline)
}

// FindOnlinePlayersByIDs 주어진 ID 중 ONLINE 상태인 플레이어만 조회 (큐 스냅샷 크기로 읽기 범위를 줄임)
func (r *PlayerRepository) FindOnlinePlayersByIDs(ctx context.Context, ids []string) ([]models.PlayerRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, rating, status, updated_at
		FROM players
		WHERE status = $1 AND id = ANY($2)
		ORDER BY rating ASC, id ASC
	`
	return r.queryPlayers(ctx, query, models.PlayerStatusOnline, pq.Array(ids))
}

// FindPlayer ID로 플레이어 조회
func (r *PlayerRepository) FindPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	query := `
		SELECT id, rating, status, updated_at
		FROM players
		WHERE id = $1
	`

	player := &models.PlayerRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&player.ID,
		&player.Rating,
		&player.Status,
		&player.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	return player, nil
}

// UpdatePlayerStatus 플레이어 상태 변경
func (r *PlayerRepository) UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus) error {
	query := `
		UPDATE players
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, status)
}

// UpdatePlayerRating 플레이어 레이팅 변경
func (r *PlayerRepository) UpdatePlayerRating(ctx context.Context, id string, rating int) error {
	query := `
		UPDATE players
		SET rating = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, rating)
}

// UpsertPlayer 플레이어 생성 또는 레이팅 갱신. 새 플레이어는 OFFLINE으로 시작
func (r *PlayerRepository) UpsertPlayer(ctx context.Context, id string, rating int) error {
	query := `
		INSERT INTO players (id, rating, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
		    rating = EXCLUDED.rating,
		    updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, id, rating, models.PlayerStatusOffline); err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

func (r *PlayerRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrPlayerNotFound
	}

	return nil
}

func (r *PlayerRepository) queryPlayers(ctx context.Context, query string, args ...interface{}) ([]models.PlayerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var players []models.PlayerRecord
	for rows.Next() {
		var p models.PlayerRecord
		if err := rows.Scan(&p.ID, &p.Rating, &p.Status, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	return players, nil
}
