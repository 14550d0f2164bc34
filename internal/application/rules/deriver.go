// Package rules provides the default rule deriver and constraint validator.
// Both sides of the pipeline (db-first fill and generative fallback) consume
// the same derived rule set through the outbound ports.
package rules

import (
	"context"
	"strings"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
)

// dietPresets map diet keys to their category exclusions and macro bounds.
var dietPresets = map[string]mealplan.DietRuleSet{
	"vegan": {
		ExcludedCategories: []string{"meat", "poultry", "fish", "dairy", "egg", "honey"},
	},
	"vegetarian": {
		ExcludedCategories: []string{"meat", "poultry", "fish"},
	},
	"pescatarian": {
		ExcludedCategories: []string{"meat", "poultry"},
	},
	"keto": {
		Macros: mealplan.MacroBounds{MaxCarbsG: 50},
	},
	"low_carb": {
		Macros: mealplan.MacroBounds{MaxCarbsG: 130},
	},
	"mediterranean": {
		RequiredCategories: []string{"vegetable", "fish"},
	},
}

// Deriver implements outbound.RuleDeriver.
type Deriver struct {
	logger *zap.Logger
}

// NewDeriver creates the default rule deriver.
func NewDeriver(logger *zap.Logger) outbound.RuleDeriver {
	return &Deriver{logger: logger.Named("rule-deriver")}
}

// Derive builds the hard-constraint rule set from a profile snapshot.
func (d *Deriver) Derive(ctx context.Context, p profile.Profile) (mealplan.DietRuleSet, error) {
	rules := mealplan.DietRuleSet{
		DietKey:               p.DietKey,
		MinIngredientsPerMeal: 2,
		MaxSameRecipePerWeek:  3,
	}

	if preset, ok := dietPresets[strings.ToLower(p.DietKey)]; ok {
		rules.ExcludedCategories = append(rules.ExcludedCategories, preset.ExcludedCategories...)
		rules.RequiredCategories = append(rules.RequiredCategories, preset.RequiredCategories...)
		rules.Macros = preset.Macros
	} else if p.DietKey != "" {
		d.logger.Warn("Unknown diet key, deriving allergen/dislike rules only",
			zap.String("diet_key", p.DietKey),
		)
	}

	for _, a := range p.Allergies {
		rules.Allergens = append(rules.Allergens, strings.ToLower(strings.TrimSpace(a)))
	}
	for _, dl := range p.Dislikes {
		rules.DislikedNames = append(rules.DislikedNames, strings.ToLower(strings.TrimSpace(dl)))
	}

	return rules, nil
}
