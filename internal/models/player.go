package models

import "time"

type PlayerStatus string

const (
	PlayerStatusOffline PlayerStatus = "OFFLINE"
	PlayerStatusOnline  PlayerStatus = "ONLINE"
	PlayerStatusInGame  PlayerStatus = "IN_GAME"
)

// Valid reports whether s is one of the known statuses.
func (s PlayerStatus) Valid() bool {
	switch s {
	case PlayerStatusOffline, PlayerStatusOnline, PlayerStatusInGame:
		return true
	}
	return false
}

type PlayerRecord struct {
	ID        string       `json:"id" db:"id"`
	Rating    int          `json:"rating" db:"rating"`
	Status    PlayerStatus `json:"status" db:"status"`
	UpdatedAt time.Time    `json:"updatedAt" db:"updated_at"`
}
