// Package guardrails stamps plans with a content-hashed allow/block decision.
// The decision is pure metadata: it never gates the generation control flow.
package guardrails

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
)

// Version identifies the rule revision baked into this evaluator.
const Version = "v1"

// Evaluator implements outbound.GuardrailsEvaluator.
type Evaluator struct {
	blockedTerms []string
	logger       *zap.Logger
}

// NewEvaluator creates a guardrails evaluator with a blocked-term list.
func NewEvaluator(blockedTerms []string, logger *zap.Logger) outbound.GuardrailsEvaluator {
	terms := make([]string, 0, len(blockedTerms))
	for _, t := range blockedTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &Evaluator{blockedTerms: terms, logger: logger.Named("guardrails")}
}

// Evaluate hashes the plan content together with the rule set and checks the
// blocked-term list against meal and ingredient names.
func (e *Evaluator) Evaluate(ctx context.Context, days []mealplan.MealPlanDay, rules mealplan.DietRuleSet) (mealplan.GuardrailsSummary, error) {
	hash, err := contentHash(days, rules)
	if err != nil {
		return mealplan.GuardrailsSummary{}, fmt.Errorf("guardrails content hash: %w", err)
	}

	summary := mealplan.GuardrailsSummary{
		Allowed:     true,
		ContentHash: hash,
		Version:     Version,
	}

	for _, day := range days {
		for _, meal := range day.Meals {
			haystack := strings.ToLower(meal.Name)
			for _, ref := range meal.Ingredients {
				haystack += " " + strings.ToLower(ref.DisplayName)
			}
			for _, term := range e.blockedTerms {
				if strings.Contains(haystack, term) {
					summary.Allowed = false
					summary.Reasons = append(summary.Reasons,
						fmt.Sprintf("blocked term %q in %q", term, meal.Name))
				}
			}
		}
	}

	if !summary.Allowed {
		e.logger.Warn("Plan flagged by guardrails",
			zap.String("content_hash", hash),
			zap.Strings("reasons", summary.Reasons),
		)
	}

	return summary, nil
}

func contentHash(days []mealplan.MealPlanDay, rules mealplan.DietRuleSet) (string, error) {
	payload, err := json.Marshal(struct {
		Days  []mealplan.MealPlanDay `json:"days"`
		Rules mealplan.DietRuleSet   `json:"rules"`
	}{days, rules})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
