package models

import "time"

// QueueEntry is a waiting player. It only lives in process memory.
type QueueEntry struct {
	PlayerID   string    `json:"playerId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type QueueStatus struct {
	InQueue   bool          `json:"inQueue"`
	WaitTime  time.Duration `json:"waitTime"`
	QueueSize int           `json:"queueSize"`
}

// MatchResult is produced by one pairing pass. Player snapshots are taken at pairing time.
type MatchResult struct {
	MatchID         string       `json:"matchId"`
	Player1         PlayerRecord `json:"player1"`
	Player2         PlayerRecord `json:"player2"`
	ScoreDifference int          `json:"scoreDifference"`
	IsTimeoutMatch  bool         `json:"isTimeoutMatch"`
}

type MatchmakingHistory struct {
	ID             string    `db:"id" json:"id"`
	MatchID        string    `db:"match_id" json:"matchId"`
	WinnerID       string    `db:"winner_id" json:"winnerId"`
	LoserID        string    `db:"loser_id" json:"loserId"`
	WinnerScore    int       `db:"winner_score" json:"winnerScore"`
	LoserScore     int       `db:"loser_score" json:"loserScore"`
	RatingGap      int       `db:"rating_gap" json:"ratingGap"`
	IsTimeoutMatch bool      `db:"is_timeout_match" json:"isTimeoutMatch"`
	CompletedAt    time.Time `db:"completed_at" json:"completedAt"`
}
