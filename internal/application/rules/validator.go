package rules

import (
	"fmt"
	"strings"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// Stable issue codes emitted by the validator.
const (
	IssueAllergenPresent    = "allergen_present"
	IssueDislikedIngredient = "disliked_ingredient"
	IssueExcludedCategory   = "excluded_category"
	IssueTooFewIngredients  = "too_few_ingredients"
	IssuePlaceholderMeal    = "placeholder_meal"
	IssueRecipeRepeatCap    = "same_recipe_over_week_cap"
	IssueMacroOutOfBounds   = "macro_out_of_bounds"
)

// NutritionLookup resolves per-100g macros for a food code. Nil lookups
// disable macro-bound checks; every other rule still applies.
type NutritionLookup func(foodCode string) (caloriesPer100g, proteinPer100g, carbsPer100g, fatPer100g float64, ok bool)

// Validator implements outbound.ConstraintValidator. It always validates the
// whole plan: daily macro totals and weekly repeat caps are only checkable in
// full-plan context.
type Validator struct {
	nutrition NutritionLookup
}

// NewValidator creates the default constraint validator.
func NewValidator(nutrition NutritionLookup) outbound.ConstraintValidator {
	return &Validator{nutrition: nutrition}
}

// Validate returns all hard-constraint violations; empty means valid.
// Placeholder cells are skipped: they are scaffolding, judged separately.
func (v *Validator) Validate(plan *mealplan.MealPlan, rules mealplan.DietRuleSet, request mealplan.PlanRequest) []mealplan.Issue {
	var issues []mealplan.Issue
	recipeCounts := make(map[string]int)

	for _, day := range plan.Days() {
		var dayCalories, dayProtein, dayCarbs, dayFat float64
		nutritionKnown := v.nutrition != nil

		for _, meal := range day.Meals {
			if meal.IsPlaceholder() {
				continue
			}

			issues = append(issues, v.checkMeal(meal, rules)...)
			recipeCounts[strings.ToLower(meal.Name)]++

			if v.nutrition != nil {
				for _, ref := range meal.Ingredients {
					kcal, protein, carbs, fat, ok := v.nutrition(ref.FoodCode)
					if !ok {
						nutritionKnown = false
						continue
					}
					factor := ref.QuantityG / 100
					dayCalories += kcal * factor
					dayProtein += protein * factor
					dayCarbs += carbs * factor
					dayFat += fat * factor
				}
			}
		}

		if nutritionKnown {
			issues = append(issues, checkMacros(day, rules.Macros, dayCalories, dayProtein, dayCarbs, dayFat)...)
		}
	}

	if rules.MaxSameRecipePerWeek > 0 {
		for name, count := range recipeCounts {
			if count > rules.MaxSameRecipePerWeek {
				issues = append(issues, mealplan.Issue{
					Code:   IssueRecipeRepeatCap,
					Detail: fmt.Sprintf("%q appears %d times, cap is %d", name, count, rules.MaxSameRecipePerWeek),
				})
			}
		}
	}

	return issues
}

func (v *Validator) checkMeal(meal mealplan.Meal, rules mealplan.DietRuleSet) []mealplan.Issue {
	var issues []mealplan.Issue

	if len(meal.Ingredients) < rules.MinIngredientsPerMeal {
		issues = append(issues, mealplan.Issue{
			Code:   IssueTooFewIngredients,
			Detail: fmt.Sprintf("%q has %d ingredients, minimum is %d", meal.Name, len(meal.Ingredients), rules.MinIngredientsPerMeal),
		})
	}

	for _, ref := range meal.Ingredients {
		haystack := strings.ToLower(ref.DisplayName + " " + ref.FoodCode)

		for _, allergen := range rules.Allergens {
			if allergen != "" && strings.Contains(haystack, allergen) {
				issues = append(issues, mealplan.Issue{
					Code:   IssueAllergenPresent,
					Detail: fmt.Sprintf("%q contains allergen %q", meal.Name, allergen),
				})
			}
		}
		for _, disliked := range rules.DislikedNames {
			if disliked != "" && strings.Contains(haystack, disliked) {
				issues = append(issues, mealplan.Issue{
					Code:   IssueDislikedIngredient,
					Detail: fmt.Sprintf("%q contains disliked %q", meal.Name, disliked),
				})
			}
		}
		for _, category := range rules.ExcludedCategories {
			if category != "" && strings.Contains(haystack, category) {
				issues = append(issues, mealplan.Issue{
					Code:   IssueExcludedCategory,
					Detail: fmt.Sprintf("%q contains excluded category %q", meal.Name, category),
				})
			}
		}
	}

	return issues
}

func checkMacros(day mealplan.MealPlanDay, bounds mealplan.MacroBounds, calories, protein, carbs, fat float64) []mealplan.Issue {
	var issues []mealplan.Issue
	date := day.Date.Format("2006-01-02")

	if bounds.MinCalories > 0 && calories < bounds.MinCalories {
		issues = append(issues, mealplan.Issue{
			Code:   IssueMacroOutOfBounds,
			Detail: fmt.Sprintf("%s: %.0f kcal below minimum %.0f", date, calories, bounds.MinCalories),
		})
	}
	if bounds.MaxCalories > 0 && calories > bounds.MaxCalories {
		issues = append(issues, mealplan.Issue{
			Code:   IssueMacroOutOfBounds,
			Detail: fmt.Sprintf("%s: %.0f kcal above maximum %.0f", date, calories, bounds.MaxCalories),
		})
	}
	if bounds.MinProteinG > 0 && protein < bounds.MinProteinG {
		issues = append(issues, mealplan.Issue{
			Code:   IssueMacroOutOfBounds,
			Detail: fmt.Sprintf("%s: %.0fg protein below minimum %.0fg", date, protein, bounds.MinProteinG),
		})
	}
	if bounds.MaxCarbsG > 0 && carbs > bounds.MaxCarbsG {
		issues = append(issues, mealplan.Issue{
			Code:   IssueMacroOutOfBounds,
			Detail: fmt.Sprintf("%s: %.0fg carbs above maximum %.0fg", date, carbs, bounds.MaxCarbsG),
		})
	}
	if bounds.MaxFatG > 0 && fat > bounds.MaxFatG {
		issues = append(issues, mealplan.Issue{
			Code:   IssueMacroOutOfBounds,
			Detail: fmt.Sprintf("%s: %.0fg fat above maximum %.0fg", date, fat, bounds.MaxFatG),
		})
	}

	return issues
}
