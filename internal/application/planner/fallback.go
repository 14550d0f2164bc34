package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
	apperrors "github.com/mealforge/v1/pkg/errors"
	"go.uber.org/zap"
)

// fallbackEngine eliminates placeholders left by the fill pass with a single
// batched generative call scoped to the deferred cells.
type fallbackEngine struct {
	planner   outbound.GenerativePlanner
	validator outbound.ConstraintValidator
	logger    *zap.Logger
}

// resolve fills deferred cells from generative proposals, re-validating each
// one before acceptance. In strict mode it fails without invoking generation.
// After the pass, any remaining placeholder fails the whole operation; a plan
// with placeholder content is never persisted.
func (e *fallbackEngine) resolve(ctx context.Context, plan *mealplan.MealPlan, deferred []deferredCell, rules mealplan.DietRuleSet, locale profile.Locale, varietyHints []string, cfg Config) error {
	if len(deferred) == 0 {
		return nil
	}
	if cfg.FillMode == mealplan.FillModeStrict {
		return apperrors.NewInsufficientCandidatesError(len(deferred))
	}

	cells := make([]mealplan.CellRef, 0, len(deferred))
	for _, d := range deferred {
		cells = append(cells, d.Cell)
	}

	constraints := rules.PromptConstraints()
	for _, key := range sortedKeys(plan.Request().TherapeuticTargets) {
		constraints = append(constraints,
			fmt.Sprintf("daily target %s: %.1f", key, plan.Request().TherapeuticTargets[key]))
	}

	proposals, err := e.planner.Generate(ctx, plan.Request(), locale, outbound.GenerateOptions{
		OnlyCells:    cells,
		Prefilled:    plan.Days(),
		Constraints:  constraints,
		VarietyHints: varietyHints,
	})
	if err != nil {
		return apperrors.NewAgentError("generative-planner", err)
	}

	for _, cell := range cells {
		meal, ok := proposals[cell.Key()]
		if !ok || meal.IsPlaceholder() {
			plan.Metadata().RecordFallback(mealplan.ReasonAIBlocked)
			continue
		}
		scratch := plan.Clone()
		if err := scratch.SetMeal(cell, meal); err != nil {
			continue
		}
		if issues := e.validator.Validate(scratch, rules, plan.Request()); len(issues) > 0 {
			plan.Metadata().RecordFallback(mealplan.ReasonAIBlocked)
			e.logger.Debug("Generated meal rejected by constraints",
				zap.String("cell", cell.Key()),
				zap.String("issue", issueSummary(issues)),
			)
			continue
		}
		if err := plan.SetMeal(cell, meal); err != nil {
			return err
		}
		plan.Metadata().RecordSource(cell, mealplan.TierAI)
	}

	if unfilled := plan.Placeholders(); len(unfilled) > 0 {
		return apperrors.NewInsufficientCandidatesError(len(unfilled))
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
