package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/jonboulle/clockwork"
)

// MemoryPlayerStore keeps player records in process memory. It backs the
// "memory" store driver and the service tests.
type MemoryPlayerStore struct {
	mu      sync.RWMutex
	players map[string]models.PlayerRecord
	clock   clockwork.Clock

	// When autoRegister is set, status writes for unknown ids create the
	// player with defaultRating instead of failing.
	autoRegister  bool
	defaultRating int
}

func NewMemoryPlayerStore(clock clockwork.Clock) *MemoryPlayerStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryPlayerStore{
		players: make(map[string]models.PlayerRecord),
		clock:   clock,
	}
}

// WithAutoRegister makes unknown players appear on their first status write.
func (s *MemoryPlayerStore) WithAutoRegister(defaultRating int) *MemoryPlayerStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoRegister = true
	s.defaultRating = defaultRating
	return s
}

// Register adds an OFFLINE player with the given rating.
func (s *MemoryPlayerStore) Register(id string, rating int) {
	s.Put(models.PlayerRecord{ID: id, Rating: rating, Status: models.PlayerStatusOffline})
}

func (s *MemoryPlayerStore) Put(p models.PlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.clock.Now()
	}
	s.players[p.ID] = p
}

func (s *MemoryPlayerStore) FindOnlinePlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PlayerRecord
	for _, p := range s.players {
		if p.Status == models.PlayerStatusOnline {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryPlayerStore) FindPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return &p, nil
}

func (s *MemoryPlayerStore) UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		if !s.autoRegister {
			return ErrPlayerNotFound
		}
		p = models.PlayerRecord{ID: id, Rating: s.defaultRating}
	}
	p.Status = status
	p.UpdatedAt = s.clock.Now()
	s.players[id] = p
	return nil
}

func (s *MemoryPlayerStore) UpdatePlayerRating(ctx context.Context, id string, rating int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Rating = rating
	p.UpdatedAt = s.clock.Now()
	s.players[id] = p
	return nil
}
