// Package migrations provides database schema migration for the
// meal planning tables.
package migrations

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	gormModels "github.com/mealforge/v1/internal/infrastructure/persistence/gorm"
)

// Migrator applies the schema derived from the GORM models.
type Migrator struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a new migrator instance
func New(db *gorm.DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger.Named("migrations")}
}

// Up brings the schema up to date
func (m *Migrator) Up() error {
	start := time.Now()
	m.logger.Info("Running database migrations")

	err := m.db.AutoMigrate(
		&gormModels.MealPlanModel{},
		&gormModels.MealPlanRunModel{},
		&gormModels.UserRecipeModel{},
		&gormModels.MealHistoryModel{},
		&gormModels.IngredientRefModel{},
		&gormModels.UserProfileModel{},
		&gormModels.HardAvoidRuleModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info("Database migrations complete",
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
