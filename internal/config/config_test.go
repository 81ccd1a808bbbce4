package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/ducminhle1904/crypto-decision-core/internal/errors"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Voting.MinStrategies)
	assert.Equal(t, 0.05, cfg.Risk.MaxPositionSize)
	assert.True(t, cfg.Risk.EnableMLCorrelation)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "core.yaml", `
environment: test
logging:
  level: debug
  format: json
voting:
  min_strategies: 3
  weight_ttl: 30m
risk:
  max_position_size: 0.1
  circuit_breaker_cooldown: 2h
  enable_ml_correlation: false
  strict_risk_reward: true
metrics:
  enabled: true
  textfile: out.prom
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Voting.MinStrategies)
	assert.Equal(t, 30*time.Minute, cfg.Voting.WeightTTL)
	assert.Equal(t, 0.6, cfg.Voting.ConsensusThreshold)
	assert.Equal(t, 0.1, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 2*time.Hour, cfg.Risk.CircuitBreakerCooldown)
	assert.False(t, cfg.Risk.EnableMLCorrelation)
	assert.True(t, cfg.Risk.StrictRiskReward)
	assert.Equal(t, "out.prom", cfg.Metrics.Textfile)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvEnableKelly, "true")
	t.Setenv(EnvMetricsTextfile, "/tmp/x.prom")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Risk.EnableKellyCriterion)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/tmp/x.prom", cfg.Metrics.Textfile)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"position above one", "risk:\n  max_position_size: 1.5\n"},
		{"drawdown above breaker", "risk:\n  max_daily_drawdown: 0.08\n"},
		{"zero strategies", "voting:\n  min_strategies: 0\n"},
		{"malformed yaml", "risk: [\n"},
		{"min risk-reward below range", "risk:\n  min_risk_reward_ratio: 1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.body))
			require.Error(t, err)
			cat, ok := coreerrors.CategoryOf(err)
			require.True(t, ok)
			assert.Equal(t, coreerrors.ErrorCategoryConfiguration, cat)
			assert.ErrorIs(t, err, coreerrors.ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsBadEnvBool(t *testing.T) {
	t.Setenv(EnvStrictRR, "maybe")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := writeFile(t, ".env", "DECISION_TEST_ONLY_KEY=42\n")
	t.Cleanup(func() { os.Unsetenv("DECISION_TEST_ONLY_KEY") })
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "42", os.Getenv("DECISION_TEST_ONLY_KEY"))
}
