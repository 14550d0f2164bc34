package planner

import (
	"fmt"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/pkg/errors"
)

// VarietyTargets are weekly diversity goals, scaled proportionally to the
// requested day count at evaluation time.
type VarietyTargets struct {
	MinDistinctVegetables int
	MinProteinSources     int
	MaxSameRecipeRepeats  int
}

// Config is the explicitly constructed, dependency-injected planner
// configuration. There is no process-wide cached config: callers pass a
// value at construction and tests use WithConfig.
type Config struct {
	// Candidate selection
	TargetReuseRatio   float64
	RepeatWindowDays   int
	HistoryReuseRatio  float64
	MinHistoryRating   float64
	MinHistoryScore    float64
	MaxHistoryUsage    int
	HistoryRecencyDays int

	// Fill behavior
	FillMode      mealplan.FillMode
	MinDBCoverage float64

	// Quota and locking
	RateLimitPerHour int
	LockStaleAfter   time.Duration

	// Variety
	Variety VarietyTargets

	// Post-commit side effects run asynchronously in production; tests flip
	// this to run them inline.
	SyncPostCommit bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TargetReuseRatio:   0.7,
		RepeatWindowDays:   7,
		HistoryReuseRatio:  0.8,
		MinHistoryRating:   3.5,
		MinHistoryScore:    0.6,
		MaxHistoryUsage:    20,
		HistoryRecencyDays: 3,
		FillMode:           mealplan.FillModeFallback,
		MinDBCoverage:      0,
		RateLimitPerHour:   10,
		LockStaleAfter:     10 * time.Minute,
		Variety: VarietyTargets{
			MinDistinctVegetables: 5,
			MinProteinSources:     3,
			MaxSameRecipeRepeats:  2,
		},
	}
}

// Validate rejects unusable configurations with CONFIG_INVALID.
func (c Config) Validate() error {
	if c.TargetReuseRatio < 0 || c.TargetReuseRatio > 1 {
		return errors.NewConfigInvalidError("target reuse ratio must be within [0, 1]")
	}
	if c.HistoryReuseRatio < 0 || c.HistoryReuseRatio > 1 {
		return errors.NewConfigInvalidError("history reuse ratio must be within [0, 1]")
	}
	if c.MinDBCoverage < 0 || c.MinDBCoverage > 1 {
		return errors.NewConfigInvalidError("min db coverage must be within [0, 1]")
	}
	if c.RepeatWindowDays < 0 {
		return errors.NewConfigInvalidError("repeat window must not be negative")
	}
	if c.RateLimitPerHour < 1 {
		return errors.NewConfigInvalidError("rate limit must allow at least one run per hour")
	}
	if c.LockStaleAfter <= 0 {
		return errors.NewConfigInvalidError("lock staleness window must be positive")
	}
	if c.FillMode != mealplan.FillModeStrict && c.FillMode != mealplan.FillModeFallback {
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown fill mode %q", c.FillMode))
	}
	return nil
}
