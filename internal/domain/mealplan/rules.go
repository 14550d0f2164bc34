package mealplan

// MacroBounds are per-day nutrient limits; zero values mean unbounded.
type MacroBounds struct {
	MinCalories float64 `json:"minCalories,omitempty"`
	MaxCalories float64 `json:"maxCalories,omitempty"`
	MinProteinG float64 `json:"minProteinG,omitempty"`
	MaxCarbsG   float64 `json:"maxCarbsG,omitempty"`
	MaxFatG     float64 `json:"maxFatG,omitempty"`
}

// DietRuleSet is the set of hard constraints derived once per profile and
// used identically by the db-first validator and the fallback validator.
type DietRuleSet struct {
	DietKey            string      `json:"dietKey"`
	Allergens          []string    `json:"allergens,omitempty"`
	ExcludedCategories []string    `json:"excludedCategories,omitempty"`
	RequiredCategories []string    `json:"requiredCategories,omitempty"`
	DislikedNames      []string    `json:"dislikedNames,omitempty"`
	Macros             MacroBounds `json:"macros"`
	// MinIngredientsPerMeal is the structural minimum for a meal to count
	// as a real dish rather than a bare item.
	MinIngredientsPerMeal int `json:"minIngredientsPerMeal"`
	// MaxSameRecipePerWeek caps weekly repeats of one base recipe.
	MaxSameRecipePerWeek int `json:"maxSameRecipePerWeek,omitempty"`
}

// PromptConstraints renders the rule set as flat facts for the generative
// planner's prompt. Recorded on the run row as constraints_in_prompt.
func (r DietRuleSet) PromptConstraints() []string {
	var out []string
	if r.DietKey != "" {
		out = append(out, "diet: "+r.DietKey)
	}
	for _, a := range r.Allergens {
		out = append(out, "never include allergen: "+a)
	}
	for _, c := range r.ExcludedCategories {
		out = append(out, "exclude category: "+c)
	}
	for _, c := range r.RequiredCategories {
		out = append(out, "require category over the plan: "+c)
	}
	for _, n := range r.DislikedNames {
		out = append(out, "avoid disliked ingredient: "+n)
	}
	return out
}
