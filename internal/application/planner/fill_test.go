package planner

import (
	"testing"

	"github.com/mealforge/v1/internal/application/rules"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFillEngine(t *testing.T) *fillEngine {
	return &fillEngine{validator: rules.NewValidator(nil), logger: zaptest.NewLogger(t)}
}

func fillDraft(t *testing.T, days int, slots ...mealplan.Slot) *mealplan.MealPlan {
	t.Helper()
	plan, err := mealplan.NewDraft(mealplan.PlanRequest{
		UserID:   "u1",
		DateFrom: testDate,
		Days:     days,
		Slots:    slots,
		Profile:  profile.Profile{DietKey: "vegetarian"},
	})
	require.NoError(t, err)
	return plan
}

func testRules() mealplan.DietRuleSet {
	return mealplan.DietRuleSet{
		DietKey:               "vegetarian",
		ExcludedCategories:    []string{"meat", "fish"},
		MinIngredientsPerMeal: 2,
		MaxSameRecipePerWeek:  3,
	}
}

func TestFillEmptyPoolDefersWithNoCandidates(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 2, mealplan.SlotLunch)

	deferred, err := e.fill(plan, map[mealplan.Slot][]mealplan.Candidate{}, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, deferred, 2)
	for _, d := range deferred {
		assert.Equal(t, mealplan.ReasonNoCandidates, d.Reason)
	}
	assert.Equal(t, 2, plan.Metadata().FallbackReasons[mealplan.ReasonNoCandidates])
}

func TestFillRepeatWindowBlocksAcrossDays(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 3, mealplan.SlotLunch)
	pools := map[mealplan.Slot][]mealplan.Candidate{
		mealplan.SlotLunch: {recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")},
	}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)

	meal, err := plan.MealAt(mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch})
	require.NoError(t, err)
	assert.False(t, meal.IsPlaceholder(), "first day takes the only candidate")

	require.Len(t, deferred, 2, "the window blocks the same recipe on later days")
	for _, d := range deferred {
		assert.Equal(t, mealplan.ReasonRepeatWindowBlocked, d.Reason)
	}
}

func TestFillRepeatWindowReopensAfterWindow(t *testing.T) {
	e := newTestFillEngine(t)
	cfg := DefaultConfig()
	cfg.RepeatWindowDays = 2
	plan := fillDraft(t, 3, mealplan.SlotLunch)
	pools := map[mealplan.Slot][]mealplan.Candidate{
		mealplan.SlotLunch: {recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")},
	}

	deferred, err := e.fill(plan, pools, testRules(), cfg)
	require.NoError(t, err)
	require.Len(t, deferred, 1, "day three is outside a two-day window")

	third, err := plan.MealAt(mealplan.CellRef{Date: testDate.AddDate(0, 0, 2), Slot: mealplan.SlotLunch})
	require.NoError(t, err)
	assert.False(t, third.IsPlaceholder())
}

func TestFillSameDayUniqueness(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 1, mealplan.SlotLunch, mealplan.SlotDinner)
	shared := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	dinner := shared
	dinner.Meal.Slot = mealplan.SlotDinner
	pools := map[mealplan.Slot][]mealplan.Candidate{
		mealplan.SlotLunch:  {shared},
		mealplan.SlotDinner: {dinner},
	}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, deferred, 1, "one recipe cannot fill two slots of the same day")
	assert.Equal(t, mealplan.SlotDinner, deferred[0].Cell.Slot)
}

func TestFillMissingIngredientsDefer(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 1, mealplan.SlotLunch)
	bare := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	bare.Meal.Ingredients = nil
	pools := map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {bare}}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, deferred, 1)
	assert.Equal(t, mealplan.ReasonMissingIngredients, deferred[0].Reason)
}

func TestFillConstraintViolationsDefer(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 1, mealplan.SlotLunch)
	meaty := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	meaty.Meal.Ingredients = []mealplan.IngredientRef{
		{FoodCode: "meat-beef", QuantityG: 200, DisplayName: "beef steak"},
		{FoodCode: "veg-carrot", QuantityG: 80, DisplayName: "carrot"},
	}
	pools := map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {meaty}}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, deferred, 1)
	assert.Equal(t, mealplan.ReasonAllBlocked, deferred[0].Reason)

	meal, err := plan.MealAt(mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch})
	require.NoError(t, err)
	assert.True(t, meal.IsPlaceholder(), "a blocked candidate is never written")
}

func TestFillFallsPastBlockedCandidateInRankOrder(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 1, mealplan.SlotLunch)
	blocked := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	blocked.Meal.Ingredients[0].DisplayName = "fish fillet"
	ok := recipeCandidate(mealplan.SlotLunch, 1, "spinach", "lentil")
	pools := map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {blocked, ok}}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, deferred)

	meal, err := plan.MealAt(mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch})
	require.NoError(t, err)
	assert.Equal(t, ok.Meal.Name, meal.Name, "the next ranked candidate wins")
}

func TestFillRecordsTierPerWinner(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 1, mealplan.SlotLunch, mealplan.SlotDinner)
	pools := map[mealplan.Slot][]mealplan.Candidate{
		mealplan.SlotLunch:  {recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")},
		mealplan.SlotDinner: {historyCandidate(mealplan.SlotDinner, 0, "spinach", "lentil", 4.0, 0.8)},
	}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Empty(t, deferred)

	meta := plan.Metadata()
	assert.Equal(t, 1, meta.Provenance.DBSlots)
	assert.Equal(t, 1, meta.Provenance.HistorySlots)
	lunchKey := mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch}.Key()
	dinnerKey := mealplan.CellRef{Date: testDate, Slot: mealplan.SlotDinner}.Key()
	assert.Equal(t, mealplan.TierDB, meta.SlotSources[lunchKey])
	assert.Equal(t, mealplan.TierHistory, meta.SlotSources[dinnerKey])
}

func TestFillSkipsPrefilledCellsButCountsThemInWindow(t *testing.T) {
	e := newTestFillEngine(t)
	plan := fillDraft(t, 2, mealplan.SlotLunch)
	kept := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu").Meal
	require.NoError(t, plan.SetMeal(mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch}, kept))

	same := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	pools := map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {same}}

	deferred, err := e.fill(plan, pools, testRules(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, deferred, 1, "the kept meal blocks its twin inside the window")

	first, err := plan.MealAt(mealplan.CellRef{Date: testDate, Slot: mealplan.SlotLunch})
	require.NoError(t, err)
	assert.Equal(t, kept.Name, first.Name, "prefilled cells are untouched")
}
