package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/allihive/ft-transcendence-sub001/pkg/database"
)

type MatchHistoryRepository struct {
	db *database.DB
}

func NewMatchHistoryRepository(db *database.DB) *MatchHistoryRepository {
	return &MatchHistoryRepository{db: db}
}

// RecordMatch 완료된 매치 기록 저장
func (r *MatchHistoryRepository) RecordMatch(ctx context.Context, outcome models.MatchOutcome) error {
	h := outcome.History()
	query := `
		INSERT INTO matchmaking_history
			(match_id, winner_id, loser_id, winner_score, loser_score, rating_gap, is_timeout_match, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (match_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		h.MatchID,
		h.WinnerID,
		h.LoserID,
		h.WinnerScore,
		h.LoserScore,
		h.RatingGap,
		h.IsTimeoutMatch,
		h.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	return nil
}

// FindByMatchID 매치 ID로 기록 조회. 없으면 nil
func (r *MatchHistoryRepository) FindByMatchID(ctx context.Context, matchID string) (*models.MatchmakingHistory, error) {
	query := `
		SELECT id, match_id, winner_id, loser_id, winner_score, loser_score, rating_gap, is_timeout_match, completed_at
		FROM matchmaking_history
		WHERE match_id = $1
	`

	h := &models.MatchmakingHistory{}
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&h.ID,
		&h.MatchID,
		&h.WinnerID,
		&h.LoserID,
		&h.WinnerScore,
		&h.LoserScore,
		&h.RatingGap,
		&h.IsTimeoutMatch,
		&h.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find match history: %w", err)
	}

	return h, nil
}
