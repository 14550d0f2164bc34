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

// RunRepository implements the generation ledger using GORM. Its rows back
// both the per-user lock and the rolling-hour quota, so all queries here run
// against the database rather than any cache.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *gorm.DB) outbound.RunRepository {
	return &RunRepository{db: db}
}

// Insert opens a new ledger row
func (r *RunRepository) Insert(ctx context.Context, run *mealplan.Run) error {
	return r.db.WithContext(ctx).Create(RunToModel(run)).Error
}

// Update re-persists a ledger row after completion or failure
func (r *RunRepository) Update(ctx context.Context, run *mealplan.Run) error {
	result := r.db.WithContext(ctx).Save(RunToModel(run))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("run not found")
	}
	return nil
}

// ReclaimStale marks running rows older than cutoff as error/TIMEOUT
func (r *RunRepository) ReclaimStale(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&MealPlanRunModel{}).
		Where("user_id = ? AND status = ? AND created_at < ?", userID, string(mealplan.RunStatusRunning), cutoff).
		Updates(map[string]interface{}{
			"status":        string(mealplan.RunStatusError),
			"error_code":    mealplan.ErrCodeTimeout,
			"error_message": "reclaimed after staleness window",
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// CountCompletedSince counts success and error runs of the given types
// within the rolling window
func (r *RunRepository) CountCompletedSince(ctx context.Context, userID string, since time.Time, types []mealplan.RunType) (int, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&MealPlanRunModel{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Where("status IN ?", []string{string(mealplan.RunStatusSuccess), string(mealplan.RunStatusError)}).
		Where("type IN ?", typeNames).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// FindRunning returns an active run for the user other than excludeRun.
// A running row with a null plan id matches any scope: an in-flight create
// has no plan row yet but must still block both creates and regenerations.
func (r *RunRepository) FindRunning(ctx context.Context, userID string, planID *uuid.UUID, excludeRun uuid.UUID) (*mealplan.Run, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(mealplan.RunStatusRunning)).
		Where("id <> ?", excludeRun)

	if planID != nil {
		query = query.Where("plan_id = ? OR plan_id IS NULL", *planID)
	}

	var model MealPlanRunModel
	result := query.Order("created_at ASC").First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return ModelToRun(&model), nil
}
