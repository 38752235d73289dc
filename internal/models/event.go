package models

import "time"

type MatchmakingEventType string

const (
	EventPlayerQueued   MatchmakingEventType = "player_queued"
	EventPlayerLeft     MatchmakingEventType = "player_left"
	EventQueueExpired   MatchmakingEventType = "queue_expired"
	EventMatchFound     MatchmakingEventType = "match_found"
	EventMatchCompleted MatchmakingEventType = "match_completed"
	EventMatchCancelled MatchmakingEventType = "match_cancelled"
)

// MatchmakingEvent is a lifecycle notification for subscribers outside the core.
type MatchmakingEvent struct {
	Type      MatchmakingEventType `json:"type"`
	MatchID   string               `json:"match_id,omitempty"`
	PlayerIDs []string             `json:"player_ids,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}
