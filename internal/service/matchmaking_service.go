package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/allihive/ft-transcendence-sub001/pkg/metrics"
	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PlayerStore is the durable player status and rating store.
type PlayerStore interface {
	FindOnlinePlayers(ctx context.Context) ([]models.PlayerRecord, error)
	FindPlayer(ctx context.Context, id string) (*models.PlayerRecord, error)
	UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus) error
	UpdatePlayerRating(ctx context.Context, id string, rating int) error
}

// onlinePlayersByIDsFinder is implemented by stores that can narrow the online
// read to the queued ids.
type onlinePlayersByIDsFinder interface {
	FindOnlinePlayersByIDs(ctx context.Context, ids []string) ([]models.PlayerRecord, error)
}

// MatchRecorder persists completed matches.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, outcome models.MatchOutcome) error
}

// JoinLimiter throttles queue joins per player.
type JoinLimiter interface {
	Allow(key string) bool
}

// EventPublisher delivers lifecycle events to subscribers outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event models.MatchmakingEvent) error
}

type Options struct {
	MatchTimeout       time.Duration
	MinPlayersForMatch int
	Tolerance          TolerancePolicy
	// Queue entries waiting longer than ExpiryMultiplier × MatchTimeout are expired by cleanup.
	ExpiryMultiplier  int
	RequeueAfterMatch bool
	Rating            RatingCalculator
}

func DefaultOptions() Options {
	timeout := 30 * time.Second
	return Options{
		MatchTimeout:       timeout,
		MinPlayersForMatch: 2,
		Tolerance:          NewTolerancePolicy(100, 50, timeout, 3),
		ExpiryMultiplier:   10,
		Rating:             NewScoreMarginCalculator(),
	}
}

func (o Options) ExpiryAfter() time.Duration {
	return time.Duration(o.ExpiryMultiplier) * o.MatchTimeout
}

func (o Options) Validate() error {
	if o.MatchTimeout <= 0 {
		return fmt.Errorf("match timeout must be positive: %w", ErrInvalidInput)
	}
	if o.ExpiryMultiplier < 1 {
		return fmt.Errorf("expiry multiplier must be at least 1: %w", ErrInvalidInput)
	}
	if o.Tolerance.FallbackAfter <= 0 {
		return fmt.Errorf("tolerance fallback must be positive: %w", ErrInvalidInput)
	}
	if o.Tolerance.FallbackAfter >= o.ExpiryAfter() {
		return fmt.Errorf("tolerance fallback %s must come before queue expiry %s: %w",
			o.Tolerance.FallbackAfter, o.ExpiryAfter(), ErrInvalidInput)
	}
	return nil
}

type Option func(*MatchmakingService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *MatchmakingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *MatchmakingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(s *MatchmakingService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithMatchRecorder(r MatchRecorder) Option {
	return func(s *MatchmakingService) { s.recorder = r }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *MatchmakingService) { s.publisher = p }
}

func WithJoinLimiter(l JoinLimiter) Option {
	return func(s *MatchmakingService) { s.joinLimiter = l }
}

// MatchmakingService owns the waiting queue and the tracked matches and keeps
// both consistent with the player store.
//
// Lock order: tickMu, then player locks, then mu. Store calls never run under mu.
type MatchmakingService struct {
	store       PlayerStore
	opts        Options
	logger      *zap.Logger
	clock       clockwork.Clock
	metrics     metrics.MatchmakingMetrics
	recorder    MatchRecorder
	publisher   EventPublisher
	joinLimiter JoinLimiter

	mu      sync.Mutex
	queue   *queue
	matches *matchTracker

	locks  *playerLocks
	tickMu sync.Mutex
}

func NewMatchmakingService(store PlayerStore, opts Options, options ...Option) (*MatchmakingService, error) {
	if store == nil {
		return nil, fmt.Errorf("player store is required: %w", ErrInvalidInput)
	}
	if opts.MinPlayersForMatch < 2 {
		opts.MinPlayersForMatch = 2
	}
	if opts.Rating == nil {
		opts.Rating = NewScoreMarginCalculator()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &MatchmakingService{
		store:   store,
		opts:    opts,
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NewNoopMetrics(),
		queue:   newQueue(),
		matches: newMatchTracker(),
		locks:   newPlayerLocks(),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// JoinQueue 플레이어를 ONLINE으로 표시하고 큐에 추가 (재참가 시 대기 시간 초기화)
func (s *MatchmakingService) JoinQueue(ctx context.Context, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("empty player id: %w", ErrInvalidInput)
	}

	unlock := s.locks.lock(playerID)
	defer unlock()

	if s.inMatch(playerID) {
		return fmt.Errorf("player %s: %w", playerID, ErrPlayerInMatch)
	}
	if s.joinLimiter != nil && !s.joinLimiter.Allow(playerID) {
		s.logger.Warn("Queue join throttled", zap.String("playerId", playerID))
		return fmt.Errorf("player %s: %w", playerID, ErrRateLimited)
	}

	if err := s.store.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusOnline); err != nil {
		s.metrics.AddStoreFailure("update_status")
		return fmt.Errorf("failed to mark player online: %w", err)
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.queue.put(playerID, now)
	size := s.queue.size()
	s.mu.Unlock()

	s.metrics.SetQueueSize(size)
	s.logger.Info("Player joined queue",
		zap.String("playerId", playerID),
		zap.Int("queueSize", size))
	s.publish(ctx, models.EventPlayerQueued, "", playerID)
	return nil
}

// LeaveQueue 플레이어를 OFFLINE으로 표시하고 큐에서 제거. 큐에 없으면 아무것도 하지 않음
func (s *MatchmakingService) LeaveQueue(ctx context.Context, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("empty player id: %w", ErrInvalidInput)
	}

	unlock := s.locks.lock(playerID)
	defer unlock()

	s.mu.Lock()
	queued := s.queue.contains(playerID)
	busy := s.matches.busy(playerID)
	s.mu.Unlock()

	if busy {
		return fmt.Errorf("player %s: %w", playerID, ErrPlayerInMatch)
	}
	if !queued {
		return nil
	}

	if err := s.store.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusOffline); err != nil {
		s.metrics.AddStoreFailure("update_status")
		return fmt.Errorf("failed to mark player offline: %w", err)
	}

	s.mu.Lock()
	s.queue.remove(playerID)
	size := s.queue.size()
	s.mu.Unlock()

	s.metrics.SetQueueSize(size)
	s.logger.Info("Player left queue",
		zap.String("playerId", playerID),
		zap.Int("queueSize", size))
	s.publish(ctx, models.EventPlayerLeft, "", playerID)
	return nil
}

// GetPlayerQueueStatus reports queue membership and wait time. Players that are
// neither queued nor known to the store yield ErrPlayerNotFound.
func (s *MatchmakingService) GetPlayerQueueStatus(ctx context.Context, playerID string) (models.QueueStatus, error) {
	if playerID == "" {
		return models.QueueStatus{}, fmt.Errorf("empty player id: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	at, queued := s.queue.get(playerID)
	size := s.queue.size()
	s.mu.Unlock()

	if queued {
		return models.QueueStatus{
			InQueue:   true,
			WaitTime:  s.clock.Since(at),
			QueueSize: size,
		}, nil
	}

	if _, err := s.store.FindPlayer(ctx, playerID); err != nil {
		if !errors.Is(err, ErrPlayerNotFound) {
			s.metrics.AddStoreFailure("find_player")
		}
		return models.QueueStatus{}, fmt.Errorf("failed to find player %s: %w", playerID, err)
	}
	return models.QueueStatus{QueueSize: size}, nil
}

func (s *MatchmakingService) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.size()
}

func (s *MatchmakingService) InQueue(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.contains(playerID)
}

// ActiveMatches returns the tracked matches, oldest first.
func (s *MatchmakingService) ActiveMatches() []models.ActiveMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches.list()
}

// FindMatches 한 번의 매칭 패스 실행
//
// Pairs are computed from a snapshot without holding the state lock and then
// committed one by one under both players' locks. A failed pair is rolled back
// and left queued; the remaining pairs are still committed. The returned error
// aggregates the per-pair failures.
func (s *MatchmakingService) FindMatches(ctx context.Context) ([]models.MatchResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.clock.Now()
	defer func() {
		s.metrics.ObserveTickElapsedTime("find_matches", s.clock.Since(start))
	}()

	s.mu.Lock()
	entries := s.queue.snapshot()
	s.mu.Unlock()

	if len(entries) < s.opts.MinPlayersForMatch {
		return nil, nil
	}

	online, err := s.onlinePlayers(ctx, entries)
	if err != nil {
		s.metrics.AddStoreFailure("find_online_players")
		return nil, fmt.Errorf("failed to load online players: %w", err)
	}

	candidates := eligibleCandidates(online, entries)
	pairs := pairPlayers(candidates, s.clock.Now(), s.opts.Tolerance, s.opts.MinPlayersForMatch)
	if len(pairs) == 0 {
		s.logger.Debug("No pairs formed",
			zap.Int("queued", len(entries)),
			zap.Int("eligible", len(candidates)))
		return nil, nil
	}

	var (
		results []models.MatchResult
		errs    error
	)
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		result, err := s.commitPair(ctx, p)
		if err != nil {
			s.logger.Warn("Failed to commit pair",
				zap.String("player1", p.first.player.ID),
				zap.String("player2", p.second.player.ID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if result != nil {
			results = append(results, *result)
		}
	}

	if len(results) > 0 {
		s.logger.Info("Matchmaking completed",
			zap.Int("eligible", len(candidates)),
			zap.Int("matchesCreated", len(results)))
	}
	return results, errs
}

func (s *MatchmakingService) onlinePlayers(ctx context.Context, entries []models.QueueEntry) ([]models.PlayerRecord, error) {
	if finder, ok := s.store.(onlinePlayersByIDsFinder); ok {
		ids := pie.Map(entries, func(e models.QueueEntry) string { return e.PlayerID })
		return finder.FindOnlinePlayersByIDs(ctx, ids)
	}
	return s.store.FindOnlinePlayers(ctx)
}

// commitPair marks both players IN_GAME, moves them from the queue to the
// tracker and returns the result. A pair invalidated since the snapshot is
// skipped with a nil result.
func (s *MatchmakingService) commitPair(ctx context.Context, p pairing) (*models.MatchResult, error) {
	first, second := p.first.player, p.second.player

	unlock := s.locks.lock(first.ID, second.ID)
	defer unlock()

	s.mu.Lock()
	stillQueued := s.queue.contains(first.ID) && s.queue.contains(second.ID)
	busy := s.matches.busy(first.ID) || s.matches.busy(second.ID)
	s.mu.Unlock()

	if !stillQueued || busy {
		s.logger.Debug("Skipping stale pair",
			zap.String("player1", first.ID),
			zap.String("player2", second.ID))
		return nil, nil
	}

	var comp compensator
	for _, id := range []string{first.ID, second.ID} {
		if err := s.store.UpdatePlayerStatus(ctx, id, models.PlayerStatusInGame); err != nil {
			s.metrics.AddStoreFailure("update_status")
			err = fmt.Errorf("failed to mark player %s in game: %w", id, err)
			if rbErr := comp.rollback(ctx); rbErr != nil {
				s.logger.Error("Failed to roll back pair", zap.Error(rbErr))
				err = multierr.Append(err, rbErr)
			}
			return nil, err
		}
		playerID := id
		comp.add(func(ctx context.Context) error {
			return s.store.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusOnline)
		})
	}

	now := s.clock.Now()
	match := models.ActiveMatch{
		MatchID:        uuid.NewString(),
		Player1ID:      first.ID,
		Player2ID:      second.ID,
		RatingGap:      p.gap,
		IsTimeoutMatch: p.timeout,
		CreatedAt:      now,
	}

	s.mu.Lock()
	added := s.matches.add(match)
	if added {
		s.queue.remove(first.ID)
		s.queue.remove(second.ID)
	}
	queueSize, active := s.queue.size(), s.matches.size()
	s.mu.Unlock()

	if !added {
		err := fmt.Errorf("match %s could not be tracked", match.MatchID)
		if rbErr := comp.rollback(ctx); rbErr != nil {
			err = multierr.Append(err, rbErr)
		}
		return nil, err
	}

	s.metrics.AddMatchCreated(p.timeout)
	s.metrics.SetQueueSize(queueSize)
	s.metrics.SetActiveMatches(active)
	s.logger.Info("Match created",
		zap.String("matchId", match.MatchID),
		zap.String("player1", first.ID),
		zap.String("player2", second.ID),
		zap.Int("ratingGap", p.gap),
		zap.Bool("timeoutMatch", p.timeout))
	s.publish(ctx, models.EventMatchFound, match.MatchID, first.ID, second.ID)

	first.Status, second.Status = models.PlayerStatusInGame, models.PlayerStatusInGame
	return &models.MatchResult{
		MatchID:         match.MatchID,
		Player1:         first,
		Player2:         second,
		ScoreDifference: p.gap,
		IsTimeoutMatch:  p.timeout,
	}, nil
}

// CompleteMatch 매치 결과를 반영하여 레이팅을 갱신하고 두 플레이어를 ONLINE으로 되돌림
//
// If any store write fails, the writes already applied are undone and the
// match stays tracked so the caller can retry. A second completion of the same
// match returns ErrMatchNotFound.
func (s *MatchmakingService) CompleteMatch(ctx context.Context, matchID, winnerID string, winnerScore, loserScore int) (*models.MatchOutcome, error) {
	if err := validateScores(winnerScore, loserScore); err != nil {
		return nil, err
	}
	if matchID == "" || winnerID == "" {
		return nil, fmt.Errorf("match id and winner id are required: %w", ErrInvalidInput)
	}

	match, ok := s.trackedMatch(matchID)
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}
	if !match.Has(winnerID) {
		return nil, fmt.Errorf("player %s in match %s: %w", winnerID, matchID, ErrNotParticipant)
	}
	loserID := match.Opponent(winnerID)

	unlock := s.locks.lock(match.Player1ID, match.Player2ID)
	defer unlock()

	// completed or cancelled while waiting for the locks
	if _, ok := s.trackedMatch(matchID); !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}

	winner, err := s.store.FindPlayer(ctx, winnerID)
	if err != nil {
		s.metrics.AddStoreFailure("find_player")
		return nil, fmt.Errorf("failed to load winner: %w", err)
	}
	loser, err := s.store.FindPlayer(ctx, loserID)
	if err != nil {
		s.metrics.AddStoreFailure("find_player")
		return nil, fmt.Errorf("failed to load loser: %w", err)
	}

	newWinner, newLoser, err := s.opts.Rating.Calculate(winner.Rating, loser.Rating, winnerScore, loserScore)
	if err != nil {
		return nil, err
	}

	var comp compensator
	steps := []struct {
		op   string
		do   func(context.Context) error
		undo func(context.Context) error
	}{
		{
			op:   "update_rating",
			do:   func(ctx context.Context) error { return s.store.UpdatePlayerRating(ctx, winnerID, newWinner) },
			undo: func(ctx context.Context) error { return s.store.UpdatePlayerRating(ctx, winnerID, winner.Rating) },
		},
		{
			op:   "update_rating",
			do:   func(ctx context.Context) error { return s.store.UpdatePlayerRating(ctx, loserID, newLoser) },
			undo: func(ctx context.Context) error { return s.store.UpdatePlayerRating(ctx, loserID, loser.Rating) },
		},
		{
			op: "update_status",
			do: func(ctx context.Context) error {
				return s.store.UpdatePlayerStatus(ctx, winnerID, models.PlayerStatusOnline)
			},
			undo: func(ctx context.Context) error {
				return s.store.UpdatePlayerStatus(ctx, winnerID, models.PlayerStatusInGame)
			},
		},
		{
			op: "update_status",
			do: func(ctx context.Context) error {
				return s.store.UpdatePlayerStatus(ctx, loserID, models.PlayerStatusOnline)
			},
			undo: func(ctx context.Context) error {
				return s.store.UpdatePlayerStatus(ctx, loserID, models.PlayerStatusInGame)
			},
		},
	}
	for _, step := range steps {
		if err := step.do(ctx); err != nil {
			s.metrics.AddStoreFailure(step.op)
			err = fmt.Errorf("failed to apply result of match %s: %w", matchID, err)
			if rbErr := comp.rollback(ctx); rbErr != nil {
				s.logger.Error("Failed to roll back match result",
					zap.String("matchId", matchID),
					zap.Error(rbErr))
				err = multierr.Append(err, rbErr)
			}
			return nil, err
		}
		comp.add(step.undo)
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.matches.remove(matchID)
	if s.opts.RequeueAfterMatch {
		s.queue.put(winnerID, now)
		s.queue.put(loserID, now)
	}
	queueSize, active := s.queue.size(), s.matches.size()
	s.mu.Unlock()

	outcome := &models.MatchOutcome{
		MatchID:         matchID,
		WinnerID:        winnerID,
		LoserID:         loserID,
		WinnerScore:     winnerScore,
		LoserScore:      loserScore,
		WinnerOldRating: winner.Rating,
		LoserOldRating:  loser.Rating,
		WinnerNewRating: newWinner,
		LoserNewRating:  newLoser,
		IsTimeoutMatch:  match.IsTimeoutMatch,
		RatingGap:       match.RatingGap,
		CompletedAt:     now,
	}

	s.metrics.AddMatchCompleted()
	s.metrics.SetQueueSize(queueSize)
	s.metrics.SetActiveMatches(active)
	s.logger.Info("Match completed",
		zap.String("matchId", matchID),
		zap.String("winner", winnerID),
		zap.String("loser", loserID),
		zap.Int("winnerRating", newWinner),
		zap.Int("loserRating", newLoser))

	if s.recorder != nil {
		if err := s.recorder.RecordMatch(ctx, *outcome); err != nil {
			s.logger.Warn("Failed to record match history",
				zap.String("matchId", matchID),
				zap.Error(err))
		}
	}
	s.publish(ctx, models.EventMatchCompleted, matchID, winnerID, loserID)
	if s.opts.RequeueAfterMatch {
		s.publish(ctx, models.EventPlayerQueued, "", winnerID, loserID)
	}
	return outcome, nil
}

// CancelMatch 레이팅 변경 없이 매치를 취소하고 두 플레이어를 ONLINE으로 되돌림
func (s *MatchmakingService) CancelMatch(ctx context.Context, matchID string) error {
	if matchID == "" {
		return fmt.Errorf("empty match id: %w", ErrInvalidInput)
	}

	match, ok := s.trackedMatch(matchID)
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}

	unlock := s.locks.lock(match.Player1ID, match.Player2ID)
	defer unlock()

	if _, ok := s.trackedMatch(matchID); !ok {
		return fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}

	var comp compensator
	for _, id := range []string{match.Player1ID, match.Player2ID} {
		if err := s.store.UpdatePlayerStatus(ctx, id, models.PlayerStatusOnline); err != nil {
			s.metrics.AddStoreFailure("update_status")
			err = fmt.Errorf("failed to release player %s: %w", id, err)
			if rbErr := comp.rollback(ctx); rbErr != nil {
				err = multierr.Append(err, rbErr)
			}
			return err
		}
		playerID := id
		comp.add(func(ctx context.Context) error {
			return s.store.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusInGame)
		})
	}

	s.mu.Lock()
	s.matches.remove(matchID)
	active := s.matches.size()
	s.mu.Unlock()

	s.metrics.AddMatchCancelled()
	s.metrics.SetActiveMatches(active)
	s.logger.Info("Match cancelled",
		zap.String("matchId", matchID),
		zap.String("player1", match.Player1ID),
		zap.String("player2", match.Player2ID))
	s.publish(ctx, models.EventMatchCancelled, matchID, match.Player1ID, match.Player2ID)
	return nil
}

// CleanupQueue 오래된 큐 항목 정리
//
// Entries waiting longer than the expiry window are forced OFFLINE and removed.
// Younger entries whose store status is no longer ONLINE are dropped without a
// store write. Returns the number of removed entries.
func (s *MatchmakingService) CleanupQueue(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.clock.Now()
	defer func() {
		s.metrics.ObserveTickElapsedTime("cleanup_queue", s.clock.Since(start))
	}()

	cutoff := start.Add(-s.opts.ExpiryAfter())

	s.mu.Lock()
	stale := s.queue.olderThan(cutoff)
	entries := s.queue.snapshot()
	s.mu.Unlock()

	var (
		errs    error
		expired []string
	)
	for _, e := range stale {
		ok, err := s.expireEntry(ctx, e, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			expired = append(expired, e.PlayerID)
		}
	}

	dropped, err := s.reconcileQueue(ctx, entries, expired)
	errs = multierr.Append(errs, err)

	removed := len(expired) + len(dropped)
	if removed > 0 {
		size := s.QueueSize()
		s.metrics.SetQueueSize(size)
		s.metrics.AddQueueExpired(removed)
		s.logger.Info("Queue cleanup completed",
			zap.Int("expired", len(expired)),
			zap.Int("reconciled", len(dropped)),
			zap.Int("queueSize", size))
		s.publish(ctx, models.EventQueueExpired, "", append(expired, dropped...)...)
	}
	return removed, errs
}

// expireEntry forces a stale entry OFFLINE unless the player re-joined or was
// matched since the snapshot.
func (s *MatchmakingService) expireEntry(ctx context.Context, e models.QueueEntry, cutoff time.Time) (bool, error) {
	unlock := s.locks.lock(e.PlayerID)
	defer unlock()

	s.mu.Lock()
	at, queued := s.queue.get(e.PlayerID)
	s.mu.Unlock()
	if !queued || !at.Before(cutoff) {
		return false, nil
	}

	if err := s.store.UpdatePlayerStatus(ctx, e.PlayerID, models.PlayerStatusOffline); err != nil {
		s.metrics.AddStoreFailure("update_status")
		return false, fmt.Errorf("failed to expire player %s: %w", e.PlayerID, err)
	}

	s.mu.Lock()
	s.queue.remove(e.PlayerID)
	s.mu.Unlock()

	s.logger.Debug("Queue entry expired",
		zap.String("playerId", e.PlayerID),
		zap.Duration("waited", s.clock.Since(at)))
	return true, nil
}

// reconcileQueue drops entries whose store status was changed by another
// writer. Each suspect is re-read under its player lock before removal.
func (s *MatchmakingService) reconcileQueue(ctx context.Context, entries []models.QueueEntry, skip []string) ([]string, error) {
	entries = pie.Filter(entries, func(e models.QueueEntry) bool {
		return !pie.Contains(skip, e.PlayerID)
	})
	if len(entries) == 0 {
		return nil, nil
	}

	online, err := s.onlinePlayers(ctx, entries)
	if err != nil {
		s.metrics.AddStoreFailure("find_online_players")
		return nil, fmt.Errorf("failed to load online players: %w", err)
	}
	onlineIDs := make(map[string]struct{}, len(online))
	for _, p := range online {
		if p.Status == models.PlayerStatusOnline {
			onlineIDs[p.ID] = struct{}{}
		}
	}

	var (
		dropped []string
		errs    error
	)
	for _, e := range entries {
		if _, ok := onlineIDs[e.PlayerID]; ok {
			continue
		}
		ok, err := s.dropIfNotOnline(ctx, e.PlayerID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			dropped = append(dropped, e.PlayerID)
		}
	}
	return dropped, errs
}

func (s *MatchmakingService) dropIfNotOnline(ctx context.Context, playerID string) (bool, error) {
	unlock := s.locks.lock(playerID)
	defer unlock()

	if !s.InQueue(playerID) {
		return false, nil
	}

	p, err := s.store.FindPlayer(ctx, playerID)
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		// deleted from the store
	case err != nil:
		s.metrics.AddStoreFailure("find_player")
		return false, fmt.Errorf("failed to check player %s: %w", playerID, err)
	case p.Status == models.PlayerStatusOnline:
		return false, nil
	}

	s.mu.Lock()
	s.queue.remove(playerID)
	s.mu.Unlock()

	s.logger.Warn("Dropped queue entry out of sync with store",
		zap.String("playerId", playerID))
	return true, nil
}

func (s *MatchmakingService) trackedMatch(matchID string) (models.ActiveMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches.get(matchID)
}

func (s *MatchmakingService) inMatch(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches.busy(playerID)
}

// publish is best effort: delivery failures are logged and never fail the operation.
func (s *MatchmakingService) publish(ctx context.Context, eventType models.MatchmakingEventType, matchID string, playerIDs ...string) {
	if s.publisher == nil {
		return
	}
	event := models.MatchmakingEvent{
		Type:      eventType,
		MatchID:   matchID,
		PlayerIDs: playerIDs,
		Timestamp: s.clock.Now(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish matchmaking event",
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}
