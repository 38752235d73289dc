package service

import (
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/elliotchance/pie/v2"
)

type candidate struct {
	player     models.PlayerRecord
	enqueuedAt time.Time
}

type pairing struct {
	first   candidate
	second  candidate
	gap     int
	timeout bool
}

// eligibleCandidates intersects the store's online players with the queue
// snapshot. A player missing from either side is not eligible.
func eligibleCandidates(online []models.PlayerRecord, entries []models.QueueEntry) []candidate {
	queued := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		queued[e.PlayerID] = e.EnqueuedAt
	}

	seen := make(map[string]struct{}, len(online))
	online = pie.Filter(online, func(p models.PlayerRecord) bool {
		if p.Status != models.PlayerStatusOnline {
			return false
		}
		if _, ok := queued[p.ID]; !ok {
			return false
		}
		if _, dup := seen[p.ID]; dup {
			return false
		}
		seen[p.ID] = struct{}{}
		return true
	})

	return pie.Map(online, func(p models.PlayerRecord) candidate {
		return candidate{player: p, enqueuedAt: queued[p.ID]}
	})
}

// pairPlayers is the greedy pairing pass. Players are visited by rating, then
// enqueue time, then id; each one takes the closest-rated unmatched opponent
// within its own wait-driven tolerance.
func pairPlayers(cands []candidate, now time.Time, policy TolerancePolicy, minPlayers int) []pairing {
	if minPlayers < 2 {
		minPlayers = 2
	}
	if len(cands) < minPlayers {
		return nil
	}

	sorted := pie.SortUsing(cands, func(a, b candidate) bool {
		if a.player.Rating != b.player.Rating {
			return a.player.Rating < b.player.Rating
		}
		return waitedLonger(a, b)
	})

	matched := make([]bool, len(sorted))
	unmatched := len(sorted)
	var pairs []pairing

	for i := range sorted {
		if unmatched < minPlayers {
			break
		}
		if matched[i] {
			continue
		}

		p := sorted[i]
		tol := policy.Tolerance(now.Sub(p.enqueuedAt))

		best, bestGap := -1, 0
		for j := range sorted {
			if j == i || matched[j] {
				continue
			}
			gap := abs(p.player.Rating - sorted[j].player.Rating)
			if gap > tol {
				continue
			}
			if best < 0 || gap < bestGap || (gap == bestGap && waitedLonger(sorted[j], sorted[best])) {
				best, bestGap = j, gap
			}
		}
		if best < 0 {
			continue
		}

		matched[i], matched[best] = true, true
		unmatched -= 2
		pairs = append(pairs, pairing{
			first:   p,
			second:  sorted[best],
			gap:     bestGap,
			timeout: bestGap > policy.base(),
		})
	}

	return pairs
}

// waitedLonger orders by enqueue time, then id, so ties are deterministic.
func waitedLonger(a, b candidate) bool {
	if !a.enqueuedAt.Equal(b.enqueuedAt) {
		return a.enqueuedAt.Before(b.enqueuedAt)
	}
	return a.player.ID < b.player.ID
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
