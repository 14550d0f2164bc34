package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
)

const enrichmentSystemPrompt = `You write short, encouraging descriptions of meal plans.
Respond with a single JSON object and nothing else, in this shape:
{"summary": "...", "per_day": {"<date>": "..."}}
Keep the summary under three sentences and each per-day note under one sentence.`

// EnrichmentService produces descriptive text for a persisted plan using
// whichever LLM backend is configured.
type EnrichmentService struct {
	llm    ChatCompleter
	logger *zap.Logger
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(llm ChatCompleter, logger *zap.Logger) *EnrichmentService {
	return &EnrichmentService{
		llm:    llm,
		logger: logger.Named("enrichment"),
	}
}

var _ outbound.EnrichmentService = (*EnrichmentService)(nil)

type enrichmentResponse struct {
	Summary string            `json:"summary"`
	PerDay  map[string]string `json:"per_day"`
}

// Enrich generates a summary and per-day notes for a plan
func (s *EnrichmentService) Enrich(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) (mealplan.EnrichmentPayload, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Describe this meal plan in language %q:\n", locale)
	for _, day := range days {
		fmt.Fprintf(&b, "%s:\n", day.Date.Format("2006-01-02"))
		for _, meal := range day.Meals {
			if meal.IsPlaceholder() {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", meal.Slot, meal.Name)
		}
	}

	content, err := s.llm.Complete(ctx, enrichmentSystemPrompt, b.String())
	if err != nil {
		return mealplan.EnrichmentPayload{}, err
	}

	var parsed enrichmentResponse
	if err := json.Unmarshal([]byte(StripFences(content)), &parsed); err != nil {
		s.logger.Warn("Failed to parse enrichment response", zap.Error(err))
		return mealplan.EnrichmentPayload{}, fmt.Errorf("parse enrichment response: %w", err)
	}

	return mealplan.EnrichmentPayload{
		Summary: parsed.Summary,
		PerDay:  parsed.PerDay,
	}, nil
}
