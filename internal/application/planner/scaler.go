package planner

import (
	"math"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
)

// scaleToHousehold adjusts every meal's servings and ingredient quantities
// to the household size. Quantities are derived from the meal's base
// servings, so repeated application with the same target does not compound;
// callers still invoke it exactly once per plan.
func scaleToHousehold(plan *mealplan.MealPlan, p profile.Profile) mealplan.ScalingRecord {
	policy := mealplan.ScalingPolicy(p.ScalingPolicy)
	record := mealplan.ScalingRecord{
		Policy:        policy,
		HouseholdSize: p.HouseholdSize,
	}
	if policy != mealplan.ScalePolicyHousehold || p.HouseholdSize < 2 {
		return record
	}

	for _, cell := range plan.Cells() {
		meal, err := plan.MealAt(cell)
		if err != nil {
			continue
		}
		base := meal.Servings
		if base < 1 {
			base = 1
		}
		factor := float64(p.HouseholdSize) / float64(base)

		scaled := make([]mealplan.IngredientRef, len(meal.Ingredients))
		for i, ref := range meal.Ingredients {
			grams := math.Round(ref.QuantityG * factor)
			if grams < 1 {
				grams = 1
			}
			ref.QuantityG = grams
			scaled[i] = ref
		}
		meal.Ingredients = scaled
		meal.Servings = p.HouseholdSize
		if err := plan.SetMeal(cell, meal); err != nil {
			continue
		}
	}

	record.Applied = true
	return record
}
