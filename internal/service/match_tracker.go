package service

import (
	"sort"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
)

// matchTracker maps match ids to pending matches and indexes participants so a
// player can never be referenced by two tracked matches. Guarded by the service
// state mutex.
type matchTracker struct {
	matches  map[string]models.ActiveMatch
	byPlayer map[string]string
}

func newMatchTracker() *matchTracker {
	return &matchTracker{
		matches:  make(map[string]models.ActiveMatch),
		byPlayer: make(map[string]string),
	}
}

// add returns false if the id or either player is already tracked.
func (t *matchTracker) add(m models.ActiveMatch) bool {
	if _, ok := t.matches[m.MatchID]; ok {
		return false
	}
	if t.busy(m.Player1ID) || t.busy(m.Player2ID) {
		return false
	}
	t.matches[m.MatchID] = m
	t.byPlayer[m.Player1ID] = m.MatchID
	t.byPlayer[m.Player2ID] = m.MatchID
	return true
}

func (t *matchTracker) get(matchID string) (models.ActiveMatch, bool) {
	m, ok := t.matches[matchID]
	return m, ok
}

func (t *matchTracker) remove(matchID string) (models.ActiveMatch, bool) {
	m, ok := t.matches[matchID]
	if !ok {
		return models.ActiveMatch{}, false
	}
	delete(t.matches, matchID)
	delete(t.byPlayer, m.Player1ID)
	delete(t.byPlayer, m.Player2ID)
	return m, true
}

func (t *matchTracker) busy(playerID string) bool {
	_, ok := t.byPlayer[playerID]
	return ok
}

func (t *matchTracker) size() int {
	return len(t.matches)
}

// list returns tracked matches, oldest first.
func (t *matchTracker) list() []models.ActiveMatch {
	out := make([]models.ActiveMatch, 0, len(t.matches))
	for _, m := range t.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out
}
