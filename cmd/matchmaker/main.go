package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/config"
	"github.com/allihive/ft-transcendence-sub001/internal/models"
	"github.com/allihive/ft-transcendence-sub001/internal/repository"
	"github.com/allihive/ft-transcendence-sub001/internal/service"
	"github.com/allihive/ft-transcendence-sub001/pkg/database"
	"github.com/allihive/ft-transcendence-sub001/pkg/distributed"
	"github.com/allihive/ft-transcendence-sub001/pkg/logger"
	"github.com/allihive/ft-transcendence-sub001/pkg/metrics"
	"github.com/allihive/ft-transcendence-sub001/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	zapLogger := logger.L()

	logger.Info("Starting matchmaker",
		"env", cfg.Env,
		"store", cfg.StoreDriver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close resource", "error", err)
			}
		}
	}()

	// Redis 연결 (redis 저장소 또는 이벤트 발행 시)
	var redisClient *redis.Client
	if cfg.StoreDriver == config.StoreDriverRedis || cfg.PublishEvents {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		closers = append(closers, redisClient.Close)
	}

	// 플레이어 저장소 선택
	var (
		store    service.PlayerStore
		recorder service.MatchRecorder
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultOptions())
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		closers = append(closers, db.Close)
		store = repository.NewPlayerRepository(db)
		recorder = repository.NewMatchHistoryRepository(db)
	case config.StoreDriverRedis:
		store = repository.NewRedisPlayerStore(redisClient, "")
	default:
		store = repository.NewMemoryPlayerStore(nil).WithAutoRegister(cfg.DefaultRating)
	}

	ratingCalculator, err := service.NewRatingCalculator(cfg.RatingRule)
	if err != nil {
		logger.Fatal("Invalid rating rule", "error", err)
	}

	// 메트릭
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	options := []service.Option{
		service.WithLogger(zapLogger.Named("matchmaking")),
		service.WithMetrics(metrics.NewMetrics(registry)),
	}
	if recorder != nil {
		options = append(options, service.WithMatchRecorder(recorder))
	}
	if cfg.JoinRateBurst > 0 {
		options = append(options, service.WithJoinLimiter(ratelimit.NewRateLimiter(cfg.JoinRateBurst, cfg.JoinRateRefill, nil)))
	}
	if cfg.PublishEvents {
		publisher := distributed.NewRedisEventPublisher(redisClient, cfg.EventsChannel, zapLogger.Named("events"))
		options = append(options, service.WithEventPublisher(publisher))
		go logPeerEvents(ctx, publisher)
	}

	svc, err := service.NewMatchmakingService(store, service.Options{
		MatchTimeout:       cfg.MatchTimeout,
		MinPlayersForMatch: cfg.MinPlayersForMatch,
		Tolerance: service.NewTolerancePolicy(
			cfg.BaseTolerance, cfg.ToleranceStep, cfg.MatchTimeout, cfg.FallbackMultiplier),
		ExpiryMultiplier:  cfg.ExpiryMultiplier,
		RequeueAfterMatch: cfg.RequeueAfterMatch,
		Rating:            ratingCalculator,
	}, options...)
	if err != nil {
		logger.Fatal("Failed to create matchmaking service", "error", err)
	}

	scheduler, err := service.NewScheduler(svc, cfg.MatchmakingInterval, cfg.QueueCleanupInterval, zapLogger.Named("scheduler"))
	if err != nil {
		logger.Fatal("Failed to create scheduler", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 메트릭 서버 시작 (고루틴)
	go func() {
		logger.Info("Metrics server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	scheduler.Start(ctx)

	// Graceful shutdown 대기
	<-ctx.Done()
	logger.Info("Shutting down matchmaker...")

	if err := scheduler.Stop(); err != nil {
		logger.Error("Failed to stop scheduler", "error", err)
	}

	// 10초 타임아웃으로 종료
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server forced to shutdown", "error", err)
	}

	logger.Info("Matchmaker exited",
		"queued", svc.QueueSize(),
		"activeMatches", len(svc.ActiveMatches()),
	)
}

// logPeerEvents 다른 인스턴스가 발행한 이벤트를 로그로 남김
func logPeerEvents(ctx context.Context, publisher *distributed.RedisEventPublisher) {
	peerLogger := logger.L().Named("peers")
	err := publisher.SubscribePeers(ctx, func(source string, event models.MatchmakingEvent) error {
		peerLogger.Debug("Peer matchmaking event",
			zap.String("source", source),
			zap.String("type", string(event.Type)),
			zap.String("matchId", event.MatchID),
			zap.Strings("playerIds", event.PlayerIDs))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event subscription stopped", "error", err)
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
