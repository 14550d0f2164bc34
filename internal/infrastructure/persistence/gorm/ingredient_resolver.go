package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// IngredientResolver backfills ingredient references from the secondary
// ingredient table using GORM
type IngredientResolver struct {
	db *gorm.DB
}

// NewIngredientResolver creates a new ingredient resolver
func NewIngredientResolver(db *gorm.DB) outbound.IngredientResolver {
	return &IngredientResolver{db: db}
}

// ResolveIngredients returns ingredient references grouped by base recipe id
func (r *IngredientResolver) ResolveIngredients(ctx context.Context, baseIDs []string) (map[string][]mealplan.IngredientRef, error) {
	if len(baseIDs) == 0 {
		return map[string][]mealplan.IngredientRef{}, nil
	}

	var models []IngredientRefModel
	err := r.db.WithContext(ctx).
		Where("base_id IN ?", baseIDs).
		Order("base_id, food_code").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	resolved := make(map[string][]mealplan.IngredientRef, len(baseIDs))
	for _, m := range models {
		resolved[m.BaseID] = append(resolved[m.BaseID], mealplan.IngredientRef{
			FoodCode:    m.FoodCode,
			QuantityG:   m.QuantityG,
			DisplayName: m.DisplayName,
		})
	}
	return resolved, nil
}
