package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// MealHistoryStore implements the second-tier candidate source using GORM
type MealHistoryStore struct {
	db *gorm.DB
}

// NewMealHistoryStore creates a new meal history store
func NewMealHistoryStore(db *gorm.DB) outbound.MealHistoryStore {
	return &MealHistoryStore{db: db}
}

// FindCandidates returns history candidates passing the quality floors
func (s *MealHistoryStore) FindCandidates(ctx context.Context, filter outbound.HistoryFilter) ([]mealplan.Candidate, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND slot = ?", filter.UserID, string(filter.Slot)).
		Where("rating >= ? AND score >= ?", filter.MinRating, filter.MinScore)

	if filter.StylePref != "" {
		query = query.Where("style_pref = ? OR style_pref = ''", filter.StylePref)
	}
	if filter.MaxUsageCount > 0 {
		query = query.Where("usage_count <= ?", filter.MaxUsageCount)
	}
	if !filter.ExcludeServedSince.IsZero() {
		query = query.Where("last_served < ?", filter.ExcludeServedSince)
	}

	var models []MealHistoryModel
	err := query.
		Order("score DESC, rating DESC, last_served ASC").
		Limit(filter.Limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]mealplan.Candidate, 0, len(models))
	for i := range models {
		candidates = append(candidates, HistoryModelToCandidate(&models[i]))
	}
	return candidates, nil
}

// RecordUsage bumps the usage counter and last-served time for a meal
func (s *MealHistoryStore) RecordUsage(ctx context.Context, userID, mealID string) error {
	result := s.db.WithContext(ctx).
		Model(&MealHistoryModel{}).
		Where("user_id = ? AND (id = ? OR base_id = ?)", userID, mealID, mealID).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"last_served": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("history row not found")
	}
	return nil
}

// ExtractAndStore mines a persisted plan into history rows. Rows are keyed
// by (user, base id) so re-serving the same meal updates in place.
func (s *MealHistoryStore) ExtractAndStore(ctx context.Context, userID string, days []mealplan.MealPlanDay, dietKey string) error {
	models := make([]MealHistoryModel, 0, len(days)*3)
	for _, day := range days {
		for _, meal := range day.Meals {
			if meal.IsPlaceholder() {
				continue
			}
			models = append(models, MealHistoryModel{
				UserID:      userID,
				BaseID:      strings.ToLower(meal.Name),
				Name:        meal.Name,
				Slot:        string(meal.Slot),
				DietKey:     dietKey,
				Servings:    meal.Servings,
				Ingredients: meal.Ingredients,
				LastServed:  day.Date,
			})
		}
	}
	if len(models) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "base_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_served": gorm.Expr("excluded.last_served"),
				"usage_count": gorm.Expr("meal_history.usage_count + 1"),
			}),
		}).
		Create(&models).Error
}
