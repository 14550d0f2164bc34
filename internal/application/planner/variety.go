package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/mealforge/v1/internal/domain/mealplan"
)

// varietyEnforcer scores a structurally complete plan against configured
// diversity targets scaled to the requested day count.
type varietyEnforcer struct {
	targets VarietyTargets
}

var vegetableKeywords = []string{
	"broccoli", "spinach", "kale", "carrot", "zucchini", "pepper",
	"tomato", "cauliflower", "cabbage", "cucumber", "eggplant",
	"mushroom", "onion", "leek", "pea", "green bean", "asparagus",
	"lettuce", "beet", "squash", "pumpkin", "celery", "radish",
}

var proteinKeywords = map[string][]string{
	"poultry": {"chicken", "turkey", "duck"},
	"beef":    {"beef", "steak", "veal"},
	"pork":    {"pork", "ham", "bacon"},
	"fish":    {"salmon", "tuna", "cod", "trout", "mackerel", "sardine", "fish"},
	"seafood": {"shrimp", "prawn", "mussel", "squid", "crab"},
	"egg":     {"egg"},
	"dairy":   {"yogurt", "cheese", "quark", "cottage"},
	"legume":  {"lentil", "chickpea", "bean", "tofu", "tempeh", "edamame"},
}

// score computes the scorecard for the given plan days. The weekly targets
// are scaled by ceil(target * days / 7) so short plans are not held to a
// full week's bar.
func (v *varietyEnforcer) score(days []mealplan.MealPlanDay, dayCount int) mealplan.VarietyScorecard {
	vegetables := make(map[string]bool)
	proteins := make(map[string]bool)
	recipeCounts := make(map[string]int)

	for _, day := range days {
		for _, meal := range day.Meals {
			recipeCounts[strings.ToLower(meal.Name)]++
			for _, ref := range meal.Ingredients {
				name := strings.ToLower(ref.DisplayName)
				for _, veg := range vegetableKeywords {
					if strings.Contains(name, veg) {
						vegetables[veg] = true
					}
				}
				for category, words := range proteinKeywords {
					for _, w := range words {
						if strings.Contains(name, w) {
							proteins[category] = true
						}
					}
				}
			}
		}
	}

	maxRepeats := 0
	for _, n := range recipeCounts {
		if n > maxRepeats {
			maxRepeats = n
		}
	}

	card := mealplan.VarietyScorecard{
		DistinctVegetables:     len(vegetables),
		DistinctProteinSources: len(proteins),
		MaxSameRecipeRepeats:   maxRepeats,
	}

	minVeg := scaleTarget(v.targets.MinDistinctVegetables, dayCount)
	minProtein := scaleTarget(v.targets.MinProteinSources, dayCount)
	maxSame := v.targets.MaxSameRecipeRepeats

	if card.DistinctVegetables < minVeg {
		card.Shortfalls = append(card.Shortfalls,
			fmt.Sprintf("distinct vegetables %d below %d", card.DistinctVegetables, minVeg))
	}
	if card.DistinctProteinSources < minProtein {
		card.Shortfalls = append(card.Shortfalls,
			fmt.Sprintf("distinct protein sources %d below %d", card.DistinctProteinSources, minProtein))
	}
	if card.MaxSameRecipeRepeats > maxSame {
		card.Shortfalls = append(card.Shortfalls,
			fmt.Sprintf("same recipe repeated %d times, cap %d", card.MaxSameRecipeRepeats, maxSame))
	}
	card.TargetsMet = len(card.Shortfalls) == 0
	return card
}

// hints describes unmet targets for the retry prompt.
func (v *varietyEnforcer) hints(card mealplan.VarietyScorecard) []string {
	if card.TargetsMet {
		return nil
	}
	hints := make([]string, 0, len(card.Shortfalls)+1)
	hints = append(hints, "increase variety across the plan")
	hints = append(hints, card.Shortfalls...)
	return hints
}

func scaleTarget(weeklyTarget, days int) int {
	scaled := int(math.Ceil(float64(weeklyTarget) * float64(days) / 7.0))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
