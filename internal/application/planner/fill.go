package planner

import (
	"strings"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
)

// fillEngine walks the day x slot skeleton chronologically and fills each
// cell from the ranked candidate pool, deferring cells it cannot satisfy.
type fillEngine struct {
	validator outbound.ConstraintValidator
	logger    *zap.Logger
}

// fillState tracks cross-cell bookkeeping for the repeat-window and
// same-day uniqueness checks.
type fillState struct {
	// lastUsed maps slot -> base identity -> date the base was last placed.
	lastUsed map[mealplan.Slot]map[string]time.Time
	// usedOnDay maps day key -> base identities already placed that day.
	usedOnDay map[string]map[string]bool
}

func newFillState() *fillState {
	return &fillState{
		lastUsed:  make(map[mealplan.Slot]map[string]time.Time),
		usedOnDay: make(map[string]map[string]bool),
	}
}

func (s *fillState) record(cell mealplan.CellRef, base string) {
	if s.lastUsed[cell.Slot] == nil {
		s.lastUsed[cell.Slot] = make(map[string]time.Time)
	}
	s.lastUsed[cell.Slot][base] = cell.Date
	day := cell.Date.Format("2006-01-02")
	if s.usedOnDay[day] == nil {
		s.usedOnDay[day] = make(map[string]bool)
	}
	s.usedOnDay[day][base] = true
}

func (s *fillState) blockedByWindow(cell mealplan.CellRef, base string, windowDays int) bool {
	if last, ok := s.lastUsed[cell.Slot][base]; ok {
		if cell.Date.Sub(last) < time.Duration(windowDays)*24*time.Hour {
			return true
		}
	}
	return s.usedOnDay[cell.Date.Format("2006-01-02")][base]
}

// deferredCell is a cell the engine could not fill, with the reason the last
// filter stage emptied the pool.
type deferredCell struct {
	Cell   mealplan.CellRef
	Reason mealplan.FallbackReason
}

// fill mutates plan in place, filling every placeholder cell it can from
// pools and returning the cells deferred to generative fallback. Cells that
// already hold a meal are left alone but seed the repeat-window state, which
// is what makes single-day regeneration work on a partially kept plan.
func (e *fillEngine) fill(plan *mealplan.MealPlan, pools map[mealplan.Slot][]mealplan.Candidate, rules mealplan.DietRuleSet, cfg Config) ([]deferredCell, error) {
	state := newFillState()
	var deferred []deferredCell

	for _, cell := range plan.Cells() {
		if existing, err := plan.MealAt(cell); err == nil && !existing.IsPlaceholder() {
			state.record(cell, strings.ToLower(existing.Name))
			continue
		}
		pool := pools[cell.Slot]
		if len(pool) == 0 {
			deferred = append(deferred, deferredCell{cell, mealplan.ReasonNoCandidates})
			plan.Metadata().RecordFallback(mealplan.ReasonNoCandidates)
			continue
		}

		survivors := make([]mealplan.Candidate, 0, len(pool))
		for _, c := range pool {
			blocked := state.blockedByWindow(cell, candidateBase(c), cfg.RepeatWindowDays) ||
				state.blockedByWindow(cell, strings.ToLower(c.Meal.Name), cfg.RepeatWindowDays)
			if !blocked {
				survivors = append(survivors, c)
			}
		}
		if len(survivors) == 0 {
			deferred = append(deferred, deferredCell{cell, mealplan.ReasonRepeatWindowBlocked})
			plan.Metadata().RecordFallback(mealplan.ReasonRepeatWindowBlocked)
			continue
		}

		withIngredients := survivors[:0]
		for _, c := range survivors {
			if c.HasIngredients() {
				withIngredients = append(withIngredients, c)
			}
		}
		if len(withIngredients) == 0 {
			deferred = append(deferred, deferredCell{cell, mealplan.ReasonMissingIngredients})
			plan.Metadata().RecordFallback(mealplan.ReasonMissingIngredients)
			continue
		}

		winner, ok := e.firstValid(plan, cell, withIngredients, rules)
		if !ok {
			deferred = append(deferred, deferredCell{cell, mealplan.ReasonAllBlocked})
			plan.Metadata().RecordFallback(mealplan.ReasonAllBlocked)
			continue
		}

		if err := plan.SetMeal(cell, winner.Meal); err != nil {
			return nil, err
		}
		tier := mealplan.TierHistory
		if winner.Tier == mealplan.TierDB {
			tier = mealplan.TierDB
		}
		plan.Metadata().RecordSource(cell, tier)
		state.record(cell, candidateBase(winner))
		state.record(cell, strings.ToLower(winner.Meal.Name))
	}

	if len(deferred) > 0 {
		e.logger.Info("Fill pass left cells for fallback",
			zap.Int("deferred", len(deferred)),
		)
	}
	return deferred, nil
}

// firstValid substitutes each candidate into a scratch copy of the plan and
// validates the whole plan so far, accepting the first with zero issues.
// Daily macro totals and the weekly repeat cap are only checkable in
// full-plan context, so per-cell validation would not be sound.
func (e *fillEngine) firstValid(plan *mealplan.MealPlan, cell mealplan.CellRef, candidates []mealplan.Candidate, rules mealplan.DietRuleSet) (mealplan.Candidate, bool) {
	for _, c := range candidates {
		scratch := plan.Clone()
		if err := scratch.SetMeal(cell, c.Meal); err != nil {
			continue
		}
		issues := e.validator.Validate(scratch, rules, plan.Request())
		if len(issues) == 0 {
			return c, true
		}
		e.logger.Debug("Candidate rejected by constraints",
			zap.String("cell", cell.Key()),
			zap.String("meal", c.Meal.Name),
			zap.String("issue", issueSummary(issues)),
		)
	}
	return mealplan.Candidate{}, false
}

func issueSummary(issues []mealplan.Issue) string {
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	return strings.Join(codes, ",")
}
