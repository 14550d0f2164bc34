// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// MealPlanRepository implements the plan repository interface using GORM
type MealPlanRepository struct {
	db *gorm.DB
}

// NewMealPlanRepository creates a new meal plan repository
func NewMealPlanRepository(db *gorm.DB) outbound.MealPlanRepository {
	return &MealPlanRepository{db: db}
}

// Create persists a new plan row with its snapshot columns
func (r *MealPlanRepository) Create(ctx context.Context, record outbound.PlanRecord) error {
	model, err := PlanRecordToModel(record)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Update re-persists a plan over the same row id
func (r *MealPlanRepository) Update(ctx context.Context, record outbound.PlanRecord) error {
	model, err := PlanRecordToModel(record)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("meal plan not found")
	}
	return nil
}

// FindByID loads a plan row, or nil when absent
func (r *MealPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*outbound.PlanRecord, error) {
	var model MealPlanModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return ModelToPlanRecord(&model)
}

// FindIDByRequestKey resolves the idempotency key to an existing plan id
func (r *MealPlanRepository) FindIDByRequestKey(ctx context.Context, userID string, dateFrom time.Time, days int, dietKey string) (*uuid.UUID, error) {
	var model MealPlanModel

	result := r.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND date_from = ? AND days = ? AND diet_key = ?", userID, dateFrom, days, dietKey).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	id := model.ID
	return &id, nil
}

// SaveEnrichment attaches an enrichment snapshot to an existing plan row
func (r *MealPlanRepository) SaveEnrichment(ctx context.Context, id uuid.UUID, payload mealplan.EnrichmentPayload) error {
	snap, err := mealplan.NewEnrichmentSnapshot(payload)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&MealPlanModel{}).
		Where("id = ?", id).
		Update("enrichment_snapshot", SnapshotColumn(snap))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("meal plan not found")
	}
	return nil
}
