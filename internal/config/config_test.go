package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 48, cfg.Engine.SuggestionTTLHours)
	assert.Equal(t, 75.0, cfg.Engine.TargetUtilization)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "DSN must not be empty",
		},
		{
			name:    "non-positive ttl",
			mutate:  func(c *Config) { c.Engine.SuggestionTTLHours = 0 },
			wantErr: "suggestion TTL",
		},
		{
			name:    "target out of range",
			mutate:  func(c *Config) { c.Engine.TargetUtilization = 120 },
			wantErr: "target utilization",
		},
		{
			name:    "weights must sum to one",
			mutate:  func(c *Config) { c.Engine.HistoryWeights.Skill = 0.9 },
			wantErr: "score weights must sum to 1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
engine:
  suggestion_ttl_hours: 24
  target_utilization: 70
scheduler:
  enabled: false
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 24, cfg.Engine.SuggestionTTLHours)
	assert.Equal(t, 70.0, cfg.Engine.TargetUtilization)
	assert.False(t, cfg.Scheduler.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LEVELER_PORT", "7070")
	t.Setenv("LEVELER_DB_DRIVER", "postgres")
	t.Setenv("LEVELER_DB_DSN", "postgres://leveler@localhost/leveler?sslmode=disable")
	t.Setenv("LEVELER_SUGGESTION_TTL_HOURS", "12")
	t.Setenv("LEVELER_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 12, cfg.Engine.SuggestionTTLHours)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("LEVELER_PORT", "0")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestServiceConfigMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.SuggestionTTLHours = 24
	cfg.Engine.ReassignMarginPoints = 20
	cfg.Engine.TargetUtilization = 70
	cfg.Engine.WindowDays = 30

	sc := cfg.Engine.ServiceConfig()

	assert.Equal(t, 24*time.Hour, sc.Engine.SuggestionTTL)
	assert.Equal(t, 20.0, sc.Engine.ReassignMarginPoints)
	assert.Equal(t, 70.0, sc.Balancer.TargetUtilization)
	assert.Equal(t, 30, sc.Profile.WindowDays)
	assert.Equal(t, 0.30, sc.Scorer.HistoryWeights.Skill)
	assert.Equal(t, 85.0, sc.Lifecycle.OverloadInvalidationThreshold)
}
