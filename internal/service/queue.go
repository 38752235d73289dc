package service

import (
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
)

// queue is the set of waiting players. It is not safe for concurrent use;
// MatchmakingService guards it with its state mutex.
type queue struct {
	entries map[string]time.Time
}

func newQueue() *queue {
	return &queue{entries: make(map[string]time.Time)}
}

// put inserts or refreshes an entry.
func (q *queue) put(playerID string, at time.Time) {
	q.entries[playerID] = at
}

func (q *queue) remove(playerID string) bool {
	if _, ok := q.entries[playerID]; !ok {
		return false
	}
	delete(q.entries, playerID)
	return true
}

func (q *queue) get(playerID string) (time.Time, bool) {
	at, ok := q.entries[playerID]
	return at, ok
}

func (q *queue) contains(playerID string) bool {
	_, ok := q.entries[playerID]
	return ok
}

func (q *queue) size() int {
	return len(q.entries)
}

func (q *queue) snapshot() []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(q.entries))
	for id, at := range q.entries {
		out = append(out, models.QueueEntry{PlayerID: id, EnqueuedAt: at})
	}
	return out
}

// olderThan returns entries enqueued strictly before cutoff.
func (q *queue) olderThan(cutoff time.Time) []models.QueueEntry {
	var out []models.QueueEntry
	for id, at := range q.entries {
		if at.Before(cutoff) {
			out = append(out, models.QueueEntry{PlayerID: id, EnqueuedAt: at})
		}
	}
	return out
}
