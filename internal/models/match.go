package models

import "time"

// ActiveMatch is tracked from pairing until completion or cancellation.
type ActiveMatch struct {
	MatchID        string    `json:"matchId"`
	Player1ID      string    `json:"player1Id"`
	Player2ID      string    `json:"player2Id"`
	RatingGap      int       `json:"ratingGap"`
	IsTimeoutMatch bool      `json:"isTimeoutMatch"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Opponent returns the other participant, or "" if playerID is not in the match.
func (m ActiveMatch) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

func (m ActiveMatch) Has(playerID string) bool {
	return playerID != "" && (playerID == m.Player1ID || playerID == m.Player2ID)
}

type MatchOutcome struct {
	MatchID         string    `json:"matchId"`
	WinnerID        string    `json:"winnerId"`
	LoserID         string    `json:"loserId"`
	WinnerScore     int       `json:"winnerScore"`
	LoserScore      int       `json:"loserScore"`
	WinnerOldRating int       `json:"winnerOldRating"`
	LoserOldRating  int       `json:"loserOldRating"`
	WinnerNewRating int       `json:"winnerNewRating"`
	LoserNewRating  int       `json:"loserNewRating"`
	IsTimeoutMatch  bool      `json:"isTimeoutMatch"`
	RatingGap       int       `json:"ratingGap"`
	CompletedAt     time.Time `json:"completedAt"`
}

// History converts the outcome into the row persisted in match history.
func (o MatchOutcome) History() MatchmakingHistory {
	return MatchmakingHistory{
		MatchID:        o.MatchID,
		WinnerID:       o.WinnerID,
		LoserID:        o.LoserID,
		WinnerScore:    o.WinnerScore,
		LoserScore:     o.LoserScore,
		RatingGap:      o.RatingGap,
		IsTimeoutMatch: o.IsTimeoutMatch,
		CompletedAt:    o.CompletedAt,
	}
}
