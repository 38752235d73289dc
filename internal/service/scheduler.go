package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	matchJobName   = "find-matches"
	cleanupJobName = "cleanup-queue"
)

// Scheduler drives the periodic matching and cleanup ticks. Both jobs share one
// gocron scheduler limited to a single running job, and a tick that comes due
// while another one runs is skipped rather than queued.
type Scheduler struct {
	service *MatchmakingService
	sched   gocron.Scheduler
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(service *MatchmakingService, matchInterval, cleanupInterval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if matchInterval <= 0 || cleanupInterval <= 0 {
		return nil, fmt.Errorf("scheduler intervals must be positive: %w", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sched, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeReschedule),
		gocron.WithLogger(gocronLogger{logger.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		service: service,
		sched:   sched,
		logger:  logger,
		ctx:     context.Background(),
		cancel:  func() {},
	}

	listener := gocron.WithEventListeners(
		gocron.AfterJobRunsWithError(func(_ uuid.UUID, jobName string, err error) {
			s.logger.Error("Scheduled job failed",
				zap.String("job", jobName),
				zap.Error(err))
		}),
	)

	jobs := []struct {
		name     string
		interval time.Duration
		run      func() error
	}{
		{matchJobName, matchInterval, s.matchTick},
		{cleanupJobName, cleanupInterval, s.cleanupTick},
	}
	for _, j := range jobs {
		if _, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			listener,
		); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to register %s job: %w", j.name, err)
		}
	}

	return s, nil
}

// Start 스케줄러 시작. ctx가 취소되면 실행 중인 tick도 중단됨
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("Starting matchmaking scheduler",
		zap.Int("jobs", len(s.sched.Jobs())))
	s.sched.Start()
}

// Stop 스케줄러 중지. 실행 중인 tick이 끝날 때까지 대기
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("Matchmaking scheduler stopped")
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) matchTick() error {
	results, err := s.service.FindMatches(s.jobContext())
	if len(results) > 0 {
		s.logger.Debug("Match tick created matches", zap.Int("matches", len(results)))
	}
	return err
}

func (s *Scheduler) cleanupTick() error {
	removed, err := s.service.CleanupQueue(s.jobContext())
	if removed > 0 {
		s.logger.Debug("Cleanup tick removed queue entries", zap.Int("removed", removed))
	}
	return err
}

// gocronLogger adapts zap to gocron's key-value logger.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
