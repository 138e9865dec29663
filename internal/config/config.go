// Package config provides configuration for the resource leveling service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
}

// DatabaseConfig represents storage configuration. Driver is "sqlite3"
// (default) or "postgres".
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// EngineConfig carries the scoring and suggestion tuning knobs. The weight
// values are hand-tuned constants carried over from production experience;
// they are configurable rather than re-derived.
type EngineConfig struct {
	// Profile building.
	WindowDays             int     `json:"window_days" yaml:"window_days"`
	TopKeywords            int     `json:"top_keywords" yaml:"top_keywords"`
	MinKeywordLength       int     `json:"min_keyword_length" yaml:"min_keyword_length"`
	DefaultCapacityHours   float64 `json:"default_capacity_hours" yaml:"default_capacity_hours"`
	DefaultVelocity        float64 `json:"default_velocity" yaml:"default_velocity"`
	DefaultQualityScore    float64 `json:"default_quality_score" yaml:"default_quality_score"`
	DefaultCompletionHours float64 `json:"default_completion_hours" yaml:"default_completion_hours"`

	// Candidate scoring weight regimes (fractions summing to 1).
	HistoryWeights   ScoreWeights `json:"history_weights" yaml:"history_weights"`
	ColdStartWeights ScoreWeights `json:"cold_start_weights" yaml:"cold_start_weights"`

	// Suggestion generation.
	ReassignMarginPoints float64 `json:"reassign_margin_points" yaml:"reassign_margin_points"`
	SuggestionTTLHours   int     `json:"suggestion_ttl_hours" yaml:"suggestion_ttl_hours"`
	MaxTeamSuggestions   int     `json:"max_team_suggestions" yaml:"max_team_suggestions"`

	// Invalidation thresholds (utilization percentage points).
	OverloadInvalidation     float64 `json:"overload_invalidation" yaml:"overload_invalidation"`
	RelievedInvalidation     float64 `json:"relieved_invalidation" yaml:"relieved_invalidation"`
	TargetUtilization        float64 `json:"target_utilization" yaml:"target_utilization"`
	BalanceBand              float64 `json:"balance_band" yaml:"balance_band"`
	MinBalanceMoveScore      float64 `json:"min_balance_move_score" yaml:"min_balance_move_score"`
	CapacityWarningThreshold float64 `json:"capacity_warning_threshold" yaml:"capacity_warning_threshold"`
}

// ScoreWeights represents one weighted-sum regime of the candidate scorer.
type ScoreWeights struct {
	Skill        float64 `json:"skill" yaml:"skill"`
	Availability float64 `json:"availability" yaml:"availability"`
	Velocity     float64 `json:"velocity" yaml:"velocity"`
	Reliability  float64 `json:"reliability" yaml:"reliability"`
	Quality      float64 `json:"quality" yaml:"quality"`
}

// SchedulerConfig represents the periodic job runner configuration. Specs use
// robfig/cron syntax.
type SchedulerConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	ProfileRefreshSpec string `json:"profile_refresh_spec" yaml:"profile_refresh_spec"`
	SuggestionSpec     string `json:"suggestion_spec" yaml:"suggestion_spec"`
	ExpirySweepSpec    string `json:"expiry_sweep_spec" yaml:"expiry_sweep_spec"`
}

// RateLimitConfig represents API rate limiting configuration. With an empty
// RedisAddr the limiter falls back to an in-memory sliding window.
type RateLimitConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	RequestsPerMinute int    `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int    `json:"burst" yaml:"burst"`
	RedisAddr         string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword     string `json:"-" yaml:"-"` // never serialized
	RedisDB           int    `json:"redis_db" yaml:"redis_db"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8085,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./data/leveler.db?_journal_mode=WAL&_sync=NORMAL",
		},
		Engine: EngineConfig{
			WindowDays:             90,
			TopKeywords:            50,
			MinKeywordLength:       3,
			DefaultCapacityHours:   40,
			DefaultVelocity:        1.0,
			DefaultQualityScore:    3.0,
			DefaultCompletionHours: 8,
			HistoryWeights: ScoreWeights{
				Skill:        0.30,
				Availability: 0.25,
				Velocity:     0.20,
				Reliability:  0.15,
				Quality:      0.10,
			},
			ColdStartWeights: ScoreWeights{
				Skill:        0.35,
				Availability: 0.45,
				Velocity:     0.10,
				Reliability:  0.05,
				Quality:      0.05,
			},
			ReassignMarginPoints:     15,
			SuggestionTTLHours:       48,
			MaxTeamSuggestions:       10,
			OverloadInvalidation:     85,
			RelievedInvalidation:     60,
			TargetUtilization:        75,
			BalanceBand:              15,
			MinBalanceMoveScore:      40,
			CapacityWarningThreshold: 85,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			ProfileRefreshSpec: "0 */6 * * *",
			SuggestionSpec:     "30 */6 * * *",
			ExpirySweepSpec:    "*/15 * * * *",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 120,
			Burst:             30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, a .env file,
// and environment variables, in that order of increasing precedence.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := DefaultConfig()

	if path == "" {
		path = os.Getenv("LEVELER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromEnv overrides configuration from environment variables
func loadFromEnv(config *Config) {
	if host := os.Getenv("LEVELER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := envInt("LEVELER_PORT"); port != nil {
		config.Server.Port = *port
	}
	if rt := envInt("LEVELER_READ_TIMEOUT_SECONDS"); rt != nil {
		config.Server.ReadTimeout = *rt
	}
	if wt := envInt("LEVELER_WRITE_TIMEOUT_SECONDS"); wt != nil {
		config.Server.WriteTimeout = *wt
	}

	if driver := os.Getenv("LEVELER_DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dsn := os.Getenv("LEVELER_DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if ttl := envInt("LEVELER_SUGGESTION_TTL_HOURS"); ttl != nil {
		config.Engine.SuggestionTTLHours = *ttl
	}
	if target := envFloat("LEVELER_TARGET_UTILIZATION"); target != nil {
		config.Engine.TargetUtilization = *target
	}

	if addr := os.Getenv("LEVELER_REDIS_ADDR"); addr != "" {
		config.RateLimit.RedisAddr = addr
		config.RateLimit.Enabled = true
	}
	if pw := os.Getenv("LEVELER_REDIS_PASSWORD"); pw != "" {
		config.RateLimit.RedisPassword = pw
	}

	if level := os.Getenv("LEVELER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LEVELER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

func envInt(key string) *int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func envFloat(key string) *float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Driver != "sqlite3" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must not be empty")
	}
	if c.Engine.SuggestionTTLHours <= 0 {
		return fmt.Errorf("suggestion TTL must be positive, got %d", c.Engine.SuggestionTTLHours)
	}
	if c.Engine.TargetUtilization <= 0 || c.Engine.TargetUtilization > 100 {
		return fmt.Errorf("target utilization must be in (0,100], got %.1f", c.Engine.TargetUtilization)
	}
	for _, w := range []ScoreWeights{c.Engine.HistoryWeights, c.Engine.ColdStartWeights} {
		sum := w.Skill + w.Availability + w.Velocity + w.Reliability + w.Quality
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("score weights must sum to 1.0, got %.3f", sum)
		}
	}
	return nil
}
