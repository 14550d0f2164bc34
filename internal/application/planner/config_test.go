package planner

import (
	"testing"

	"github.com/mealforge/v1/internal/domain/mealplan"
	apperrors "github.com/mealforge/v1/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"reuse ratio above one", func(c *Config) { c.TargetReuseRatio = 1.2 }},
		{"negative reuse ratio", func(c *Config) { c.TargetReuseRatio = -0.1 }},
		{"history ratio above one", func(c *Config) { c.HistoryReuseRatio = 2 }},
		{"coverage above one", func(c *Config) { c.MinDBCoverage = 1.5 }},
		{"negative repeat window", func(c *Config) { c.RepeatWindowDays = -1 }},
		{"zero rate limit", func(c *Config) { c.RateLimitPerHour = 0 }},
		{"zero staleness window", func(c *Config) { c.LockStaleAfter = 0 }},
		{"unknown fill mode", func(c *Config) { c.FillMode = mealplan.FillMode("lenient") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeConfigInvalid))
		})
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerHour = 0
	_, err := NewService(Dependencies{}, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigInvalid))
}
