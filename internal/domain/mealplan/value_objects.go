package mealplan

import (
	"fmt"
	"time"
)

// Slot is a named meal occasion within a day.
type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
	SlotSnack     Slot = "snack"
)

// Tier is the provenance bucket of a candidate.
type Tier string

const (
	// TierDB marks meals taken from the first-tier user recipe store.
	TierDB Tier = "db"
	// TierHistory marks meals taken from the historical-use store. A history
	// item may itself have been AI-authored, so it is never reported as "db".
	TierHistory Tier = "history"
	// TierAI marks meals produced by the generative fallback.
	TierAI Tier = "ai"
)

// FillMode controls what happens to cells the database cannot fill.
type FillMode string

const (
	// FillModeStrict fails the whole operation instead of calling the
	// generative planner.
	FillModeStrict FillMode = "strict"
	// FillModeFallback hands unfilled cells to the generative planner.
	FillModeFallback FillMode = "fallback"
)

// ScalingPolicy controls household quantity scaling.
type ScalingPolicy string

const (
	ScalePolicyHousehold  ScalingPolicy = "scale_to_household"
	ScalePolicyKeepRecipe ScalingPolicy = "keep_recipe_servings"
)

// FallbackReason explains why a cell was deferred to the generative fallback
// or left unfilled.
type FallbackReason string

const (
	ReasonNoCandidates        FallbackReason = "no_candidates"
	ReasonRepeatWindowBlocked FallbackReason = "repeat_window_blocked"
	ReasonMissingIngredients  FallbackReason = "missing_ingredient_refs"
	ReasonAllBlocked          FallbackReason = "all_candidates_blocked_by_constraints"
	ReasonAIBlocked           FallbackReason = "ai_candidate_blocked_by_constraints"
)

// IngredientRef references an external food item with a gram quantity.
type IngredientRef struct {
	FoodCode    string  `json:"foodCode"`
	QuantityG   float64 `json:"quantityG"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Validate checks the reference carries a usable code and quantity.
func (r IngredientRef) Validate() error {
	if r.FoodCode == "" {
		return ErrMissingFoodCode
	}
	if r.QuantityG <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// CellRef identifies one (date, slot) cell of a plan.
type CellRef struct {
	Date time.Time
	Slot Slot
}

// Key returns a stable map key for the cell.
func (c CellRef) Key() string {
	return fmt.Sprintf("%s/%s", c.Date.Format("2006-01-02"), c.Slot)
}

// Issue is one hard-constraint violation reported by the validator.
// An empty issue list means the plan is valid.
type Issue struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func (i Issue) String() string {
	if i.Detail == "" {
		return i.Code
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Detail)
}

// Candidate is a reusable meal drawn from one of the two candidate tiers,
// together with the ranking signals the candidate source sorts on.
type Candidate struct {
	Meal         Meal
	Tier         Tier
	BaseID       string // base recipe identity used for the repeat-window check
	FavoriteRank int    // 0 = not favorited; lower rank sorts first
	Rating       float64
	Score        float64
	UsageCount   int
	LastServed   time.Time
}

// HasIngredients reports whether the candidate carries ingredient references.
func (c Candidate) HasIngredients() bool {
	return len(c.Meal.Ingredients) > 0
}
