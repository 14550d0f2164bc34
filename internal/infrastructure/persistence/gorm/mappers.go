// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"fmt"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// PlanRecordToModel converts a plan record to a GORM model, freezing the
// request, rules, and plan body into their snapshot columns.
func PlanRecordToModel(record outbound.PlanRecord) (*MealPlanModel, error) {
	plan := record.Plan
	request := plan.Request()

	requestSnap, err := mealplan.NewRequestSnapshot(request)
	if err != nil {
		return nil, err
	}
	rulesSnap, err := mealplan.NewRulesSnapshot(record.Rules)
	if err != nil {
		return nil, err
	}
	planSnap, err := mealplan.NewPlanSnapshot(plan.Days(), *plan.Metadata())
	if err != nil {
		return nil, err
	}

	model := &MealPlanModel{
		ID:              plan.ID(),
		UserID:          request.UserID,
		DateFrom:        request.DateFrom,
		Days:            request.Days,
		DietKey:         request.Profile.DietKey,
		RequestSnapshot: SnapshotColumn(requestSnap),
		RulesSnapshot:   SnapshotColumn(rulesSnap),
		PlanSnapshot:    SnapshotColumn(planSnap),
		Status:          record.Status,
	}

	if record.Enrichment != nil {
		snap, err := mealplan.NewEnrichmentSnapshot(*record.Enrichment)
		if err != nil {
			return nil, err
		}
		col := SnapshotColumn(snap)
		model.EnrichmentSnapshot = &col
	}

	return model, nil
}

// ModelToPlanRecord rebuilds a plan record from its snapshot columns.
func ModelToPlanRecord(model *MealPlanModel) (*outbound.PlanRecord, error) {
	request, err := model.RequestSnapshot.Snapshot().DecodeRequest()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", model.ID, err)
	}
	rules, err := model.RulesSnapshot.Snapshot().DecodeRules()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", model.ID, err)
	}
	body, err := model.PlanSnapshot.Snapshot().DecodePlan()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", model.ID, err)
	}

	record := &outbound.PlanRecord{
		Plan:   mealplan.Restore(model.ID, request, body.Days, body.Metadata),
		Rules:  rules,
		Status: model.Status,
	}

	if model.EnrichmentSnapshot != nil {
		var payload mealplan.EnrichmentPayload
		snap := model.EnrichmentSnapshot.Snapshot()
		if err := snap.Decode(mealplan.SnapshotKindEnrichment, mealplan.EnrichmentSnapshotVersion, &payload); err != nil {
			return nil, fmt.Errorf("plan %s: %w", model.ID, err)
		}
		record.Enrichment = &payload
	}

	return record, nil
}

// RunToModel converts a ledger run to a GORM model
func RunToModel(run *mealplan.Run) *MealPlanRunModel {
	return &MealPlanRunModel{
		ID:                  run.ID,
		UserID:              run.UserID,
		PlanID:              run.PlanID,
		Type:                string(run.Type),
		Model:               run.Model,
		Status:              string(run.Status),
		DurationMs:          run.DurationMs,
		ErrorCode:           run.ErrorCode,
		ErrorMessage:        run.ErrorMessage,
		ConstraintsInPrompt: StringSlice(run.ConstraintsInPrompt),
		GuardrailsHash:      run.GuardrailsHash,
		GuardrailsVersion:   run.GuardrailsVersion,
		CreatedAt:           run.CreatedAt,
	}
}

// ModelToRun converts a GORM model back to a ledger run
func ModelToRun(model *MealPlanRunModel) *mealplan.Run {
	return &mealplan.Run{
		ID:                  model.ID,
		UserID:              model.UserID,
		PlanID:              model.PlanID,
		Type:                mealplan.RunType(model.Type),
		Model:               model.Model,
		Status:              mealplan.RunStatus(model.Status),
		DurationMs:          model.DurationMs,
		ErrorCode:           model.ErrorCode,
		ErrorMessage:        model.ErrorMessage,
		ConstraintsInPrompt: model.ConstraintsInPrompt,
		GuardrailsHash:      model.GuardrailsHash,
		GuardrailsVersion:   model.GuardrailsVersion,
		CreatedAt:           model.CreatedAt,
	}
}

// RecipeModelToCandidate converts a first-tier recipe row to a candidate
func RecipeModelToCandidate(model *UserRecipeModel) mealplan.Candidate {
	var lastServed time.Time
	if model.LastServed != nil {
		lastServed = *model.LastServed
	}
	return mealplan.Candidate{
		Meal: mealplan.Meal{
			ID:          model.ID,
			Name:        model.Name,
			Slot:        mealplan.Slot(model.Slot),
			Ingredients: model.Ingredients,
			Servings:    model.Servings,
		},
		Tier:         mealplan.TierDB,
		BaseID:       model.BaseID,
		FavoriteRank: model.FavoriteRank,
		Rating:       model.Rating,
		Score:        model.Score,
		UsageCount:   model.UsageCount,
		LastServed:   lastServed,
	}
}

// HistoryModelToCandidate converts a second-tier history row to a candidate
func HistoryModelToCandidate(model *MealHistoryModel) mealplan.Candidate {
	return mealplan.Candidate{
		Meal: mealplan.Meal{
			ID:          model.ID,
			Name:        model.Name,
			Slot:        mealplan.Slot(model.Slot),
			Ingredients: model.Ingredients,
			Servings:    model.Servings,
		},
		Tier:       mealplan.TierHistory,
		BaseID:     model.BaseID,
		Rating:     model.Rating,
		Score:      model.Score,
		UsageCount: model.UsageCount,
		LastServed: model.LastServed,
	}
}
