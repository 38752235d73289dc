package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Metrics
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Matchmaking
	MatchmakingInterval  time.Duration `env:"MATCHMAKING_INTERVAL" envDefault:"5s"`
	QueueCleanupInterval time.Duration `env:"QUEUE_CLEANUP_INTERVAL" envDefault:"1m"`
	MatchTimeout         time.Duration `env:"MATCH_TIMEOUT" envDefault:"30s"`
	MinPlayersForMatch   int           `env:"MIN_PLAYERS_FOR_MATCH" envDefault:"2"`
	BaseTolerance        int           `env:"BASE_TOLERANCE" envDefault:"100"`
	ToleranceStep        int           `env:"TOLERANCE_STEP" envDefault:"50"`
	FallbackMultiplier   int           `env:"FALLBACK_MULTIPLIER" envDefault:"3"`
	ExpiryMultiplier     int           `env:"EXPIRY_MULTIPLIER" envDefault:"10"`
	DefaultRating        int           `env:"DEFAULT_RATING" envDefault:"1000"`
	RatingRule           string        `env:"RATING_RULE" envDefault:"score_margin"`
	RequeueAfterMatch    bool          `env:"REQUEUE_AFTER_MATCH" envDefault:"false"`

	// Join throttle (JOIN_RATE_BURST=0 disables it)
	JoinRateBurst  int64         `env:"JOIN_RATE_BURST" envDefault:"0"`
	JoinRateRefill time.Duration `env:"JOIN_RATE_REFILL" envDefault:"10s"`

	// Events
	PublishEvents bool   `env:"PUBLISH_EVENTS" envDefault:"false"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"matchmaking:events"`
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = multierr.Append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverRedis, StoreDriverMemory:
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.StoreDriver == StoreDriverRedis || c.PublishEvents {
		if c.RedisURL == "" {
			errs = multierr.Append(errs, errors.New("REDIS_URL is required"))
		}
	}

	if c.MatchmakingInterval <= 0 {
		errs = multierr.Append(errs, errors.New("MATCHMAKING_INTERVAL must be positive"))
	}
	if c.QueueCleanupInterval <= 0 {
		errs = multierr.Append(errs, errors.New("QUEUE_CLEANUP_INTERVAL must be positive"))
	}
	if c.MatchTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("MATCH_TIMEOUT must be positive"))
	}
	if c.BaseTolerance < 0 || c.ToleranceStep < 0 {
		errs = multierr.Append(errs, errors.New("BASE_TOLERANCE and TOLERANCE_STEP must not be negative"))
	}
	if c.FallbackMultiplier < 1 {
		errs = multierr.Append(errs, errors.New("FALLBACK_MULTIPLIER must be at least 1"))
	}
	if c.ExpiryMultiplier <= c.FallbackMultiplier {
		errs = multierr.Append(errs, fmt.Errorf("EXPIRY_MULTIPLIER (%d) must exceed FALLBACK_MULTIPLIER (%d)",
			c.ExpiryMultiplier, c.FallbackMultiplier))
	}
	if c.DefaultRating < 0 {
		errs = multierr.Append(errs, errors.New("DEFAULT_RATING must not be negative"))
	}
	if c.JoinRateBurst < 0 {
		errs = multierr.Append(errs, errors.New("JOIN_RATE_BURST must not be negative"))
	}
	if c.JoinRateBurst > 0 && c.JoinRateRefill <= 0 {
		errs = multierr.Append(errs, errors.New("JOIN_RATE_REFILL must be positive when joins are throttled"))
	}
	switch c.RatingRule {
	case "score_margin", "elo":
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown RATING_RULE %q", c.RatingRule))
	}

	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
