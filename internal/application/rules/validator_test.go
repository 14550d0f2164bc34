package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/stretchr/testify/require"
)

func validatorPlan(t *testing.T, days int, slots ...mealplan.Slot) *mealplan.MealPlan {
	t.Helper()
	if len(slots) == 0 {
		slots = []mealplan.Slot{mealplan.SlotLunch, mealplan.SlotDinner}
	}
	plan, err := mealplan.NewDraft(mealplan.PlanRequest{
		UserID:   "user-1",
		DateFrom: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Days:     days,
		Slots:    slots,
		Profile:  profile.Profile{DietKey: "balanced"},
	})
	require.NoError(t, err)
	return plan
}

func mealWith(name string, ingredients ...mealplan.IngredientRef) mealplan.Meal {
	return mealplan.Meal{ID: uuid.New(), Name: name, Ingredients: ingredients}
}

func issueCodes(issues []mealplan.Issue) []string {
	codes := make([]string, len(issues))
	for i, issue := range issues {
		codes[i] = issue.Code
	}
	return codes
}

func TestValidateFlagsAllergenAndDislike(t *testing.T) {
	plan := validatorPlan(t, 1, mealplan.SlotLunch)
	meal := mealWith("satay bowl",
		mealplan.IngredientRef{FoodCode: "F200", DisplayName: "Peanut sauce", QuantityG: 40},
		mealplan.IngredientRef{FoodCode: "F201", DisplayName: "Celery sticks", QuantityG: 60},
	)
	require.NoError(t, plan.SetMeal(plan.Cells()[0], meal))

	rules := mealplan.DietRuleSet{
		Allergens:             []string{"peanut"},
		DislikedNames:         []string{"celery"},
		MinIngredientsPerMeal: 2,
	}
	issues := NewValidator(nil).Validate(plan, rules, plan.Request())
	require.Contains(t, issueCodes(issues), IssueAllergenPresent)
	require.Contains(t, issueCodes(issues), IssueDislikedIngredient)
}

func TestValidateFlagsExcludedCategoryViaFoodCode(t *testing.T) {
	plan := validatorPlan(t, 1, mealplan.SlotDinner)
	meal := mealWith("roast",
		mealplan.IngredientRef{FoodCode: "meat-beef-021", QuantityG: 200},
		mealplan.IngredientRef{FoodCode: "veg-potato-001", QuantityG: 300},
	)
	require.NoError(t, plan.SetMeal(plan.Cells()[0], meal))

	rules := mealplan.DietRuleSet{ExcludedCategories: []string{"meat"}, MinIngredientsPerMeal: 2}
	issues := NewValidator(nil).Validate(plan, rules, plan.Request())
	require.Equal(t, []string{IssueExcludedCategory}, issueCodes(issues))
}

func TestValidateSkipsPlaceholders(t *testing.T) {
	plan := validatorPlan(t, 2)
	rules := mealplan.DietRuleSet{MinIngredientsPerMeal: 2}
	require.Empty(t, NewValidator(nil).Validate(plan, rules, plan.Request()))
}

func TestValidateMinIngredients(t *testing.T) {
	plan := validatorPlan(t, 1, mealplan.SlotLunch)
	meal := mealWith("apple", mealplan.IngredientRef{FoodCode: "fruit-apple", QuantityG: 150})
	require.NoError(t, plan.SetMeal(plan.Cells()[0], meal))

	rules := mealplan.DietRuleSet{MinIngredientsPerMeal: 2}
	issues := NewValidator(nil).Validate(plan, rules, plan.Request())
	require.Equal(t, []string{IssueTooFewIngredients}, issueCodes(issues))
}

func TestValidateWeeklyRepeatCap(t *testing.T) {
	plan := validatorPlan(t, 4, mealplan.SlotDinner)
	for _, cell := range plan.Cells() {
		meal := mealWith("Chili",
			mealplan.IngredientRef{FoodCode: "bean-kidney", QuantityG: 120},
			mealplan.IngredientRef{FoodCode: "veg-tomato", QuantityG: 200},
		)
		require.NoError(t, plan.SetMeal(cell, meal))
	}

	rules := mealplan.DietRuleSet{MinIngredientsPerMeal: 2, MaxSameRecipePerWeek: 3}
	issues := NewValidator(nil).Validate(plan, rules, plan.Request())
	require.Equal(t, []string{IssueRecipeRepeatCap}, issueCodes(issues))
}

func TestValidateMacroBounds(t *testing.T) {
	plan := validatorPlan(t, 1, mealplan.SlotDinner)
	meal := mealWith("pasta",
		mealplan.IngredientRef{FoodCode: "grain-pasta", QuantityG: 200},
		mealplan.IngredientRef{FoodCode: "veg-tomato", QuantityG: 100},
	)
	require.NoError(t, plan.SetMeal(plan.Cells()[0], meal))

	nutrition := func(code string) (float64, float64, float64, float64, bool) {
		switch code {
		case "grain-pasta":
			return 350, 12, 70, 2, true
		case "veg-tomato":
			return 18, 1, 4, 0, true
		}
		return 0, 0, 0, 0, false
	}

	// 200g pasta alone carries 140g carbs
	rules := mealplan.DietRuleSet{MinIngredientsPerMeal: 2, Macros: mealplan.MacroBounds{MaxCarbsG: 100}}
	issues := NewValidator(nutrition).Validate(plan, rules, plan.Request())
	require.Equal(t, []string{IssueMacroOutOfBounds}, issueCodes(issues))
}

func TestValidateMacroCheckDisabledOnUnknownFood(t *testing.T) {
	plan := validatorPlan(t, 1, mealplan.SlotDinner)
	meal := mealWith("mystery dish",
		mealplan.IngredientRef{FoodCode: "unknown-1", QuantityG: 500},
		mealplan.IngredientRef{FoodCode: "unknown-2", QuantityG: 500},
	)
	require.NoError(t, plan.SetMeal(plan.Cells()[0], meal))

	nutrition := func(code string) (float64, float64, float64, float64, bool) {
		return 0, 0, 0, 0, false
	}
	rules := mealplan.DietRuleSet{MinIngredientsPerMeal: 2, Macros: mealplan.MacroBounds{MaxCalories: 1}}
	require.Empty(t, NewValidator(nutrition).Validate(plan, rules, plan.Request()))
}
