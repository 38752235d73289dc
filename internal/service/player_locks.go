package service

import (
	"sort"
	"sync"
)

// playerLocks serializes mutating operations per player so a store write and
// its in-memory reflection are never interleaved with another operation on the
// same player. Entries are reference counted and dropped when unused.
type playerLocks struct {
	mu    sync.Mutex
	locks map[string]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[string]*playerLock)}
}

// lock acquires the locks of all ids in sorted order and returns the release
// function. Duplicate ids are locked once.
func (l *playerLocks) lock(ids ...string) func() {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	held := make([]*playerLock, 0, len(sorted))
	for _, id := range sorted {
		pl := l.acquire(id)
		pl.mu.Lock()
		held = append(held, pl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(sorted[i])
		}
	}
}

func (l *playerLocks) acquire(id string) *playerLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &playerLock{}
		l.locks[id] = pl
	}
	pl.refs++
	return pl
}

func (l *playerLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl := l.locks[id]
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, id)
	}
}
