// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat and snake_case so env vars map onto them directly.
// - Provide New() to build a Config with defaults.
// - Validation errors wrap ErrInvalidConfig, loading errors wrap ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// AdminToken guards /admin routes; empty disables them.
	AdminToken string `koanf:"admin_token"`

	// DBDriver selects the record store backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`
	// DBDSN is passed to the driver unchanged.
	DBDSN string `koanf:"db_dsn"`

	// MarkerBackend selects where the retention marker lives: file or redis.
	MarkerBackend string `koanf:"marker_backend"`
	MarkerPath    string `koanf:"marker_path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisKey      string `koanf:"redis_key"`

	// RetentionOrigin is the first cycle boundary in RFC 3339.
	RetentionOrigin string `koanf:"retention_origin"`
	// RetentionDays is the cycle length.
	RetentionDays int `koanf:"retention_days"`

	// ChallengeID is the tracked challenge.
	ChallengeID int `koanf:"challenge_id"`
	// TopN is the default number of displayed rows.
	TopN int `koanf:"top_n"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AvatarURL and IconURL are fmt templates taking the asset id.
	AvatarURL           string `koanf:"avatar_url"`
	IconURL             string `koanf:"icon_url"`
	AssetTimeoutMS      int    `koanf:"asset_timeout_ms"`
	AssetCacheSize      int    `koanf:"asset_cache_size"`
	AssetCacheTTLSecond int    `koanf:"asset_cache_ttl_s"`
	DefaultAvatarChar   string `koanf:"default_avatar_char"`

	// RefreshConcurrency caps simultaneous upstream calls of a batch refresh.
	RefreshConcurrency int `koanf:"refresh_concurrency"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// UpstreamMode is http for the real game API or simulated.
	UpstreamMode      string `koanf:"upstream_mode"`
	UpstreamURL       string `koanf:"upstream_url"`
	UpstreamTimeoutMS int    `koanf:"upstream_timeout_ms"`
	// UpstreamLatencyMinMS and UpstreamLatencyMaxMS bound simulated latency.
	UpstreamLatencyMinMS int `koanf:"upstream_latency_min_ms"`
	UpstreamLatencyMaxMS int `koanf:"upstream_latency_max_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		DBDriver:             "sqlite",
		DBDSN:                "data/slashboard.db",
		MarkerBackend:        "file",
		MarkerPath:           "data/retention.marker",
		RedisKey:             "slashboard:retention:epoch",
		RetentionOrigin:      "2025-08-04T04:00:00+08:00",
		RetentionDays:        28,
		ChallengeID:          12,
		TopN:                 20,
		MaxLeaderboardLimit:  100,
		AssetTimeoutMS:       3000,
		AssetCacheSize:       200,
		AssetCacheTTLSecond:  600,
		DefaultAvatarChar:    "1203",
		RefreshConcurrency:   5,
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		UpstreamMode:         "simulated",
		UpstreamTimeoutMS:    10_000,
		UpstreamLatencyMinMS: 80,
		UpstreamLatencyMaxMS: 150,
	}
}

// Origin returns the parsed retention origin.
func (c *Config) Origin() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.RetentionOrigin)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: retention_origin: %v", ErrInvalidConfig, err)
	}
	return t, nil
}

// AssetTimeout returns the per-fetch asset timeout.
func (c *Config) AssetTimeout() time.Duration {
	return time.Duration(c.AssetTimeoutMS) * time.Millisecond
}

// AssetCacheTTL returns how long resolved assets stay cached.
func (c *Config) AssetCacheTTL() time.Duration {
	return time.Duration(c.AssetCacheTTLSecond) * time.Second
}

// UpstreamTimeout returns the game API client timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !oneOf(c.DBDriver, "sqlite", "postgres"):
		return fmt.Errorf("%w: db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case !oneOf(c.MarkerBackend, "file", "redis"):
		return fmt.Errorf("%w: marker_backend %q", ErrInvalidConfig, c.MarkerBackend)
	case c.MarkerBackend == "file" && c.MarkerPath == "":
		return fmt.Errorf("%w: marker_path must not be empty", ErrInvalidConfig)
	case c.MarkerBackend == "redis" && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr is required for the redis marker", ErrInvalidConfig)
	case c.RetentionDays <= 0:
		return fmt.Errorf("%w: retention_days must be positive", ErrInvalidConfig)
	case c.ChallengeID <= 0:
		return fmt.Errorf("%w: challenge_id must be positive", ErrInvalidConfig)
	case c.TopN <= 0 || c.MaxLeaderboardLimit < c.TopN:
		return fmt.Errorf("%w: top_n must be positive and at most max_leaderboard_limit", ErrInvalidConfig)
	case !oneOf(c.UpstreamMode, "http", "simulated"):
		return fmt.Errorf("%w: upstream_mode %q", ErrInvalidConfig, c.UpstreamMode)
	case c.UpstreamMode == "simulated" && c.UpstreamLatencyMinMS >= c.UpstreamLatencyMaxMS:
		return fmt.Errorf("%w: upstream latency min must be below max", ErrInvalidConfig)
	}
	if _, err := c.Origin(); err != nil {
		return err
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
