package outbound

import (
	"context"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
)

// ProfileProvider loads the user profile snapshot, language and household
// hard-avoid rules. Upstream profile management is out of scope.
type ProfileProvider interface {
	LoadProfile(ctx context.Context, userID string) (profile.Profile, error)
	Language(ctx context.Context, userID string) (profile.Locale, error)
	HardAvoidRules(ctx context.Context, userID string) ([]profile.HardAvoidRule, error)
}

// RuleDeriver turns a profile into the hard-constraint rule set, once per
// generation.
type RuleDeriver interface {
	Derive(ctx context.Context, p profile.Profile) (mealplan.DietRuleSet, error)
}

// ConstraintValidator checks a whole plan against the rule set. An empty
// issue list means valid. The same validator serves the db-first fill and
// the generative fallback.
type ConstraintValidator interface {
	Validate(plan *mealplan.MealPlan, rules mealplan.DietRuleSet, request mealplan.PlanRequest) []mealplan.Issue
}

// GenerateOptions scopes a generative call.
type GenerateOptions struct {
	// OnlyCells restricts generation to an explicit subset of cells; nil
	// means the full plan.
	OnlyCells []mealplan.CellRef
	// Prefilled carries the already-filled days so generated meals can
	// complement them.
	Prefilled []mealplan.MealPlanDay
	// Constraints are the rule-set facts included in the prompt.
	Constraints []string
	// VarietyHints nudge the second attempt toward unmet variety targets.
	VarietyHints []string
}

// GeneratedMeals maps cell keys to proposed meals.
type GeneratedMeals map[string]mealplan.Meal

// GenerativePlanner produces meal proposals for requested cells. Proposals
// are re-validated before acceptance; the planner's output is never trusted.
type GenerativePlanner interface {
	Generate(ctx context.Context, request mealplan.PlanRequest, locale profile.Locale, opts GenerateOptions) (GeneratedMeals, error)
	// Model names the underlying model for the run ledger.
	Model() string
}

// EnrichmentService produces descriptive text for a persisted plan.
// Failure is non-fatal to the overall operation.
type EnrichmentService interface {
	Enrich(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) (mealplan.EnrichmentPayload, error)
}

// TranslationService localizes plan content on the read path. Best-effort
// and quota-aware: implementations return the input unchanged once the
// translation quota is exhausted.
type TranslationService interface {
	TranslateMeals(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) ([]mealplan.MealPlanDay, error)
	TranslateEnrichment(ctx context.Context, payload mealplan.EnrichmentPayload, locale profile.Locale) (mealplan.EnrichmentPayload, error)
}

// GuardrailsEvaluator stamps a content-hashed allow/block decision onto plan
// metadata. It is a sibling subsystem and never part of generation control
// flow.
type GuardrailsEvaluator interface {
	Evaluate(ctx context.Context, days []mealplan.MealPlanDay, rules mealplan.DietRuleSet) (mealplan.GuardrailsSummary, error)
}
