// Package gorm provides GORM model definitions for the application
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealforge/v1/internal/domain/mealplan"
)

// MealPlanModel is the plan row. The body of the plan lives in the snapshot
// columns; the scalar columns exist only for lookups and the idempotency key.
type MealPlanModel struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_plan_request_key"`
	DateFrom time.Time `gorm:"not null;uniqueIndex:idx_plan_request_key"`
	Days     int       `gorm:"not null;uniqueIndex:idx_plan_request_key"`
	DietKey  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_plan_request_key"`

	RequestSnapshot    SnapshotColumn  `gorm:"type:json;not null"`
	RulesSnapshot      SnapshotColumn  `gorm:"type:json;not null"`
	PlanSnapshot       SnapshotColumn  `gorm:"type:json;not null"`
	EnrichmentSnapshot *SnapshotColumn `gorm:"type:json"`

	Status    string    `gorm:"type:varchar(20);default:'active';index"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// MealPlanRunModel is one ledger row. Running rows double as the per-user
// lock; completed rows feed the rolling-hour quota.
type MealPlanRunModel struct {
	ID                  uuid.UUID   `gorm:"type:char(36);primaryKey"`
	UserID              string      `gorm:"type:varchar(64);not null;index:idx_run_user_status"`
	PlanID              *uuid.UUID  `gorm:"type:char(36);index"`
	Type                string      `gorm:"type:varchar(20);not null;index"`
	Model               string      `gorm:"type:varchar(100)"`
	Status              string      `gorm:"type:varchar(20);not null;index:idx_run_user_status"`
	DurationMs          int64       `gorm:"default:0"`
	ErrorCode           string      `gorm:"type:varchar(64)"`
	ErrorMessage        string      `gorm:"type:varchar(512)"`
	ConstraintsInPrompt StringSlice `gorm:"type:json"`
	GuardrailsHash      string      `gorm:"type:varchar(128)"`
	GuardrailsVersion   string      `gorm:"type:varchar(32)"`
	CreatedAt           time.Time   `gorm:"index"`
	UpdatedAt           time.Time
}

// UserRecipeModel is a first-tier candidate: a recipe the user authored or
// saved, with its ranking signals. FavoriteRank zero means not favorited.
type UserRecipeModel struct {
	ID           uuid.UUID      `gorm:"type:char(36);primaryKey"`
	UserID       string         `gorm:"type:varchar(64);not null;index:idx_recipe_user_slot"`
	BaseID       string         `gorm:"type:varchar(128);not null;index"`
	Name         string         `gorm:"type:varchar(255);not null"`
	Slot         string         `gorm:"type:varchar(20);not null;index:idx_recipe_user_slot"`
	StylePref    string         `gorm:"type:varchar(50);index"`
	Servings     int            `gorm:"default:1"`
	Ingredients  IngredientList `gorm:"type:json"`
	Rating       float64        `gorm:"default:0"`
	Score        float64        `gorm:"default:0;index"`
	UsageCount   int            `gorm:"default:0"`
	FavoriteRank int            `gorm:"default:0;index"`
	LastServed   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MealHistoryModel is a second-tier candidate: a previously served meal with
// quality signals. Rows are mined from persisted plans post-commit.
type MealHistoryModel struct {
	ID          uuid.UUID      `gorm:"type:char(36);primaryKey"`
	UserID      string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_history_user_base"`
	BaseID      string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_history_user_base"`
	Name        string         `gorm:"type:varchar(255);not null"`
	Slot        string         `gorm:"type:varchar(20);not null;index"`
	StylePref   string         `gorm:"type:varchar(50)"`
	DietKey     string         `gorm:"type:varchar(64);index"`
	Servings    int            `gorm:"default:1"`
	Ingredients IngredientList `gorm:"type:json"`
	Rating      float64        `gorm:"default:0"`
	Score       float64        `gorm:"default:0"`
	UsageCount  int            `gorm:"default:0"`
	LastServed  time.Time      `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IngredientRefModel maps a base recipe id to one ingredient reference in
// the secondary ingredient table used for backfill.
type IngredientRefModel struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	BaseID      string    `gorm:"type:varchar(128);not null;index"`
	FoodCode    string    `gorm:"type:varchar(64);not null"`
	DisplayName string    `gorm:"type:varchar(255)"`
	QuantityG   float64   `gorm:"not null"`
	CreatedAt   time.Time
}

// SnapshotColumn stores a tagged snapshot envelope as JSON
type SnapshotColumn mealplan.Snapshot

// Scan implements the sql.Scanner interface
func (s *SnapshotColumn) Scan(value interface{}) error {
	if value == nil {
		*s = SnapshotColumn{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into SnapshotColumn", value)
	}
}

// Value implements the driver.Valuer interface
func (s SnapshotColumn) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Snapshot returns the domain envelope
func (s SnapshotColumn) Snapshot() mealplan.Snapshot {
	return mealplan.Snapshot(s)
}

// IngredientList stores ingredient references as JSON
type IngredientList []mealplan.IngredientRef

// Scan implements the sql.Scanner interface
func (l *IngredientList) Scan(value interface{}) error {
	if value == nil {
		*l = IngredientList{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into IngredientList", value)
	}
}

// Value implements the driver.Valuer interface
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

// BeforeCreate hook for MealPlanModel
func (m *MealPlanModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for MealPlanRunModel
func (m *MealPlanRunModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for UserRecipeModel
func (m *UserRecipeModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for MealHistoryModel
func (m *MealHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for IngredientRefModel
func (m *IngredientRefModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names
func (MealPlanModel) TableName() string {
	return "meal_plans"
}

func (MealPlanRunModel) TableName() string {
	return "meal_plan_runs"
}

func (UserRecipeModel) TableName() string {
	return "user_recipes"
}

func (MealHistoryModel) TableName() string {
	return "meal_history"
}

func (IngredientRefModel) TableName() string {
	return "ingredient_refs"
}
