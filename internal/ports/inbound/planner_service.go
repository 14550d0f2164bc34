// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
package inbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/domain/mealplan"
)

// PlannerService is the use-case surface for plan generation.
type PlannerService interface {
	CreatePlan(ctx context.Context, cmd CreatePlanCommand) (*PlanDTO, error)
	RegeneratePlan(ctx context.Context, cmd RegeneratePlanCommand) (*PlanDTO, error)
	GetPlan(ctx context.Context, query GetPlanQuery) (*PlanDTO, error)
}

// CreatePlanCommand requests a fresh plan.
type CreatePlanCommand struct {
	UserID             string             `json:"userId" validate:"required"`
	DateFrom           time.Time          `json:"dateFrom" validate:"required"`
	Days               int                `json:"days" validate:"required,min=1,max=31"`
	Slots              []string           `json:"slots" validate:"required,min=1,dive,oneof=breakfast lunch dinner snack"`
	SlotStylePrefs     map[string]string  `json:"slotStylePrefs,omitempty"`
	TherapeuticTargets map[string]float64 `json:"therapeuticTargets,omitempty"`
}

// RegeneratePlanCommand regenerates an existing plan, either one day or the
// whole day list.
type RegeneratePlanCommand struct {
	UserID string    `json:"userId" validate:"required"`
	PlanID uuid.UUID `json:"planId" validate:"required"`
	// Date, when set, limits regeneration to that single day.
	Date *time.Time `json:"date,omitempty"`
}

// GetPlanQuery reads a persisted plan, translated best-effort.
type GetPlanQuery struct {
	UserID string    `json:"userId" validate:"required"`
	PlanID uuid.UUID `json:"planId" validate:"required"`
}

// MealDTO is the outward form of one filled cell.
type MealDTO struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	Slot        string                   `json:"slot"`
	Date        time.Time                `json:"date"`
	Ingredients []mealplan.IngredientRef `json:"ingredients"`
	Servings    int                      `json:"servings,omitempty"`
	SourceTier  string                   `json:"sourceTier,omitempty"`
}

// DayDTO is one plan day.
type DayDTO struct {
	Date  time.Time `json:"date"`
	Meals []MealDTO `json:"meals"`
}

// PlanDTO is the full plan response including the metadata bag.
type PlanDTO struct {
	ID       uuid.UUID         `json:"id"`
	UserID   string            `json:"userId"`
	DietKey  string            `json:"dietKey"`
	DateFrom time.Time         `json:"dateFrom"`
	Days     []DayDTO          `json:"days"`
	Metadata mealplan.Metadata `json:"metadata"`
}
