package planner

import (
	"context"
	"testing"

	"github.com/mealforge/v1/internal/application/rules"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	apperrors "github.com/mealforge/v1/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFallbackEngine(t *testing.T, gen *fakeGenerator) *fallbackEngine {
	return &fallbackEngine{planner: gen, validator: rules.NewValidator(nil), logger: zaptest.NewLogger(t)}
}

func deferAll(plan *mealplan.MealPlan) []deferredCell {
	cells := plan.Cells()
	deferred := make([]deferredCell, 0, len(cells))
	for _, cell := range cells {
		deferred = append(deferred, deferredCell{Cell: cell, Reason: mealplan.ReasonNoCandidates})
	}
	return deferred
}

func TestFallbackPlaceholderProposalCountsAsBlocked(t *testing.T) {
	gen := &fakeGenerator{propose: func(cell mealplan.CellRef, call int) mealplan.Meal {
		return mealplan.Meal{Slot: cell.Slot, Date: cell.Date}
	}}
	e := newTestFallbackEngine(t, gen)
	plan := fillDraft(t, 2, mealplan.SlotLunch)

	err := e.resolve(context.Background(), plan, deferAll(plan), testRules(), profile.DefaultLocale, nil, DefaultConfig())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientCandidates))
	assert.Equal(t, 2, plan.Metadata().FallbackReasons[mealplan.ReasonAIBlocked])
}

func TestFallbackConstraintBlockedProposalCountsAsBlocked(t *testing.T) {
	gen := &fakeGenerator{propose: func(cell mealplan.CellRef, call int) mealplan.Meal {
		return mealplan.Meal{
			Slot: cell.Slot,
			Date: cell.Date,
			Name: "Steak",
			Ingredients: []mealplan.IngredientRef{
				{FoodCode: "meat-beef-021", DisplayName: "beef", QuantityG: 200},
				{FoodCode: "veg-potato-001", DisplayName: "potato", QuantityG: 150},
			},
		}
	}}
	e := newTestFallbackEngine(t, gen)
	plan := fillDraft(t, 1, mealplan.SlotDinner)

	err := e.resolve(context.Background(), plan, deferAll(plan), testRules(), profile.DefaultLocale, nil, DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, 1, plan.Metadata().FallbackReasons[mealplan.ReasonAIBlocked])
}
