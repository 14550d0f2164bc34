package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// UserRecipeStore implements the first-tier candidate source using GORM
type UserRecipeStore struct {
	db *gorm.DB
}

// NewUserRecipeStore creates a new user recipe store
func NewUserRecipeStore(db *gorm.DB) outbound.UserRecipeStore {
	return &UserRecipeStore{db: db}
}

// FindCandidates returns recipe candidates for a slot, favorites first
func (s *UserRecipeStore) FindCandidates(ctx context.Context, filter outbound.CandidateFilter) ([]mealplan.Candidate, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND slot = ?", filter.UserID, string(filter.Slot))

	if filter.StylePref != "" {
		query = query.Where("style_pref = ? OR style_pref = ''", filter.StylePref)
	}

	var models []UserRecipeModel
	err := query.
		Order("CASE WHEN favorite_rank > 0 THEN 0 ELSE 1 END, favorite_rank ASC, score DESC, usage_count DESC").
		Limit(filter.Limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]mealplan.Candidate, 0, len(models))
	for i := range models {
		candidates = append(candidates, RecipeModelToCandidate(&models[i]))
	}
	return candidates, nil
}

// FavoriteOrder returns explicit favorite ranks keyed by base recipe id
func (s *UserRecipeStore) FavoriteOrder(ctx context.Context, userID string) (map[string]int, error) {
	var models []UserRecipeModel
	err := s.db.WithContext(ctx).
		Select("base_id", "favorite_rank").
		Where("user_id = ? AND favorite_rank > 0", userID).
		Order("favorite_rank ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	order := make(map[string]int, len(models))
	for i := range models {
		order[models[i].BaseID] = models[i].FavoriteRank
	}
	return order, nil
}
