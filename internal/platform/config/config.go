// Package config loads engine configuration from the environment.
//
// All tuning knobs (similarity threshold, scoring weights, window and
// scheduling durations) live here so operators can retune the pipeline
// without redeploying scoring logic.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Post record store
	RollingWindow      time.Duration `env:"ROLLING_WINDOW" envDefault:"48h"`
	EvictionInterval   time.Duration `env:"EVICTION_INTERVAL" envDefault:"10m"`
	ClockSkewTolerance time.Duration `env:"CLOCK_SKEW_TOLERANCE" envDefault:"2m"`

	// Clustering
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.85"`
	ShingleSize         int     `env:"SHINGLE_SIZE" envDefault:"3"`
	MaxActiveClusters   int     `env:"MAX_ACTIVE_CLUSTERS" envDefault:"512"`

	// Bot scoring
	ScoringWeights       string  `env:"SCORING_WEIGHTS" envDefault:"duplicateRatio:40,rateAnomaly:25,accountAge:20,engagementMismatch:15"`
	BaselinePostsPerHour float64 `env:"BASELINE_POSTS_PER_HOUR" envDefault:"2.0"`
	ScoringParallelism   int     `env:"SCORING_PARALLELISM" envDefault:"4"`

	// Pass scheduling
	PassInterval time.Duration `env:"PASS_INTERVAL" envDefault:"1m"`
	PassDeadline time.Duration `env:"PASS_DEADLINE" envDefault:"30s"`
	WorkerSlots  int           `env:"WORKER_SLOTS" envDefault:"4"`

	// Ingestion
	IngestRateLimitRPS int `env:"INGEST_RATE_LIMIT_RPS" envDefault:"50"`
	IngestBurst        int `env:"INGEST_BURST" envDefault:"200"`
	IngestMaxBatch     int `env:"INGEST_MAX_BATCH" envDefault:"500"`

	// Optional Postgres archive for accepted posts and published summaries.
	// The engine runs fully in-memory when unset.
	ArchiveDSN string `env:"ARCHIVE_DSN"`

	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"15m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that tuning knobs are within usable ranges.
func (c *Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold %v outside (0,1]", ErrInvalidConfig, c.SimilarityThreshold)
	}

	if c.RollingWindow <= 0 {
		return fmt.Errorf("%w: rolling window must be positive", ErrInvalidConfig)
	}

	if c.PassDeadline <= 0 || c.PassDeadline > c.PassInterval*10 {
		return fmt.Errorf("%w: pass deadline %v unusable with interval %v", ErrInvalidConfig, c.PassDeadline, c.PassInterval)
	}

	if c.WorkerSlots < 1 {
		return fmt.Errorf("%w: worker slots must be at least 1", ErrInvalidConfig)
	}

	if _, err := ParseWeights(c.ScoringWeights); err != nil {
		return err
	}

	return nil
}

// Weights parses the configured scoring weights. Validate guarantees this
// cannot fail after Load.
func (c *Config) Weights() map[string]float64 {
	w, err := ParseWeights(c.ScoringWeights)
	if err != nil {
		return nil
	}

	return w
}
