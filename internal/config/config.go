// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation errors wrap ErrInvalidConfig; source errors wrap ErrLoadConfig.
package config

import (
	"runtime"
	"time"

	"github.com/okian/verdict/internal/domain/channel"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// DBPath is the SQLite snapshot file.
	DBPath string `koanf:"db_path" validate:"required"`

	// FetchConcurrency bounds parallel store reads per request.
	FetchConcurrency int `koanf:"fetch_concurrency" validate:"gte=1,lte=256"`

	// FetchRatePerSecond throttles store reads; zero disables throttling.
	FetchRatePerSecond float64 `koanf:"fetch_rate_per_second" validate:"gte=0"`

	// CacheSize caps memoised reports; zero disables memoisation.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// CacheTTLSeconds expires memoised reports.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" validate:"gte=0"`

	// Default stage probabilities for orgs without configuration.
	ProbabilityCommit   float64 `koanf:"probability_commit" validate:"gte=0,lte=1"`
	ProbabilityBestCase float64 `koanf:"probability_best_case" validate:"gte=0,lte=1"`
	ProbabilityPipeline float64 `koanf:"probability_pipeline" validate:"gte=0,lte=1"`

	// Coverage tier cutoffs.
	CoverageAtRiskBelow float64 `koanf:"coverage_at_risk_below" validate:"gte=0"`
	CoverageHealthyAt   float64 `koanf:"coverage_healthy_at" validate:"gtefield=CoverageAtRiskBelow"`

	// HealthScoreMax is the top of the health score scale.
	HealthScoreMax float64 `koanf:"health_score_max" validate:"gt=0"`

	// PromisingMinClosedOpps is the closed deal count a partner needs to be ranked.
	PromisingMinClosedOpps int `koanf:"promising_min_closed_opps" validate:"gte=1"`

	// RollupSchedule is a cron spec for the daily rollup refresh; empty disables it.
	RollupSchedule string `koanf:"rollup_schedule"`

	// RollupWorkers is the number of goroutines draining the rollup queue.
	RollupWorkers int `koanf:"rollup_workers" validate:"gte=1,lte=64"`

	// RollupQueueCapacity caps waiting rollup jobs.
	RollupQueueCapacity int `koanf:"rollup_queue_capacity" validate:"gte=1"`

	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds" validate:"gte=1"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		DBPath:                 "verdict.db",
		FetchConcurrency:       runtime.NumCPU(),
		FetchRatePerSecond:     0,
		CacheSize:              1024,
		CacheTTLSeconds:        300,
		ProbabilityCommit:      model.DefaultCommitProbability,
		ProbabilityBestCase:    model.DefaultBestCaseProbability,
		ProbabilityPipeline:    model.DefaultPipelineProbability,
		CoverageAtRiskBelow:    forecast.DefaultAtRiskBelow,
		CoverageHealthyAt:      forecast.DefaultHealthyAt,
		HealthScoreMax:         channel.DefaultMaxHealth,
		PromisingMinClosedOpps: channel.DefaultMinClosedOpps,
		RollupSchedule:         "15 2 * * *",
		RollupWorkers:          2,
		RollupQueueCapacity:    256,
		ShutdownTimeoutSeconds: 10,
	}
}

// Probabilities returns the default stage probabilities.
func (c *Config) Probabilities() model.StageProbabilities {
	return model.StageProbabilities{
		Commit:   c.ProbabilityCommit,
		BestCase: c.ProbabilityBestCase,
		Pipeline: c.ProbabilityPipeline,
	}
}

// Thresholds returns the coverage tier cutoffs.
func (c *Config) Thresholds() forecast.Thresholds {
	return forecast.Thresholds{AtRiskBelow: c.CoverageAtRiskBelow, HealthyAt: c.CoverageHealthyAt}
}

// ChannelOptions returns the channel scoring options.
func (c *Config) ChannelOptions() channel.Options {
	return channel.Options{MaxHealth: c.HealthScoreMax, MinClosedOpps: c.PromisingMinClosedOpps}
}

// CacheTTL returns the memo TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
