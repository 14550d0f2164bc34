// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/domain/mealplan"
)

// PlanRecord is what the plan repository persists: the aggregate plus the
// versioned snapshots written alongside it. A plan is written atomically as
// one row, never partially.
type PlanRecord struct {
	Plan       *mealplan.MealPlan
	Rules      mealplan.DietRuleSet
	Enrichment *mealplan.EnrichmentPayload
	Status     string
}

// MealPlanRepository persists plan rows and their snapshot columns.
type MealPlanRepository interface {
	Create(ctx context.Context, record PlanRecord) error
	// Update re-persists over the same row id (regeneration path).
	Update(ctx context.Context, record PlanRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*PlanRecord, error)
	// FindIDByRequestKey resolves the idempotency contract: an existing plan
	// with identical (user, date_from, days, diet_key) or nil.
	FindIDByRequestKey(ctx context.Context, userID string, dateFrom time.Time, days int, dietKey string) (*uuid.UUID, error)
	// SaveEnrichment attaches an enrichment snapshot post-commit.
	SaveEnrichment(ctx context.Context, id uuid.UUID, payload mealplan.EnrichmentPayload) error
}

// RunRepository is the generation ledger. Its rows double as the durable
// per-user lock and the quota substrate, so it must work across processes.
type RunRepository interface {
	Insert(ctx context.Context, run *mealplan.Run) error
	Update(ctx context.Context, run *mealplan.Run) error
	// ReclaimStale marks running rows older than cutoff as error/TIMEOUT and
	// returns how many were reclaimed.
	ReclaimStale(ctx context.Context, userID string, cutoff time.Time) (int, error)
	// CountCompletedSince counts success/error runs of the given types for
	// the rolling-hour quota.
	CountCompletedSince(ctx context.Context, userID string, since time.Time, types []mealplan.RunType) (int, error)
	// FindRunning returns an active run for the user other than excludeRun.
	// When planID is non-nil the search is scoped to that plan id, but a
	// running row with a null plan id also matches: a fresh create must not
	// race an in-flight create. Returns nil when no lock holder exists.
	FindRunning(ctx context.Context, userID string, planID *uuid.UUID, excludeRun uuid.UUID) (*mealplan.Run, error)
}

// CandidateFilter selects first-tier candidates per slot.
type CandidateFilter struct {
	UserID    string
	Slot      mealplan.Slot
	StylePref string
	Limit     int
}

// HistoryFilter selects second-tier candidates with quality floors.
type HistoryFilter struct {
	UserID        string
	Slot          mealplan.Slot
	StylePref     string
	MinRating     float64
	MinScore      float64
	MaxUsageCount int
	// ExcludeServedSince drops items served within the recency window.
	ExcludeServedSince time.Time

	Limit int
}

// UserRecipeStore is the first-tier candidate source: explicit user-authored
// recipes, returned ranked by favorite order then consumption then recency.
type UserRecipeStore interface {
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]mealplan.Candidate, error)
	// FavoriteOrder returns explicit favorite ranks keyed by base recipe id.
	FavoriteOrder(ctx context.Context, userID string) (map[string]int, error)
}

// MealHistoryStore is the second-tier candidate source: previously served
// meals with quality and rating signals.
type MealHistoryStore interface {
	FindCandidates(ctx context.Context, filter HistoryFilter) ([]mealplan.Candidate, error)
	RecordUsage(ctx context.Context, userID, mealID string) error
	// ExtractAndStore mines a persisted plan into history rows; post-commit,
	// best-effort.
	ExtractAndStore(ctx context.Context, userID string, days []mealplan.MealPlanDay, dietKey string) error
}

// IngredientResolver backfills ingredient references for candidates that are
// missing them, from a secondary ingredient table.
type IngredientResolver interface {
	ResolveIngredients(ctx context.Context, baseIDs []string) (map[string][]mealplan.IngredientRef, error)
}

// CacheRepository is the read-side cache: plan DTOs and translation quota
// counters.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Increment bumps a counter key, creating it with the TTL when absent.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
