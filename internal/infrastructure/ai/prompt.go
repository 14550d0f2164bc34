// Package ai provides shared prompt construction and response parsing for
// the generative planner backends.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// ChatCompleter is the minimal surface both LLM backends expose. The
// enrichment and translation services are built on it so they work against
// either provider.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SystemPrompt is the fixed instruction block for meal proposals.
const SystemPrompt = `You are a meal planning assistant. You propose meals for specific calendar cells.
Respond with a single JSON object and nothing else, in this shape:
{"meals": {"<date>/<slot>": {"name": "...", "servings": 2, "ingredients": [{"food_code": "...", "quantity_g": 150.0, "display_name": "..."}]}}}
Every ingredient needs a food_code and a positive quantity_g in grams.
Never propose a meal that conflicts with the stated constraints.`

// BuildUserPrompt renders the generation request into the user message.
func BuildUserPrompt(request mealplan.PlanRequest, cells []mealplan.CellRef, opts outbound.GenerateOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Propose one meal for each of these cells:\n")
	for _, cell := range cells {
		fmt.Fprintf(&b, "- %s\n", cell.Key())
	}

	if len(opts.Constraints) > 0 {
		b.WriteString("\nHard constraints:\n")
		for _, c := range opts.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if len(opts.VarietyHints) > 0 {
		b.WriteString("\nVariety guidance:\n")
		for _, h := range opts.VarietyHints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	if len(opts.Prefilled) > 0 {
		b.WriteString("\nMeals already planned, avoid repeating them:\n")
		for _, day := range opts.Prefilled {
			for _, meal := range day.Meals {
				if meal.IsPlaceholder() {
					continue
				}
				fmt.Fprintf(&b, "- %s %s: %s\n", day.Date.Format("2006-01-02"), meal.Slot, meal.Name)
			}
		}
	}

	return b.String()
}

// TargetCells resolves which cells a generate call covers.
func TargetCells(request mealplan.PlanRequest, opts outbound.GenerateOptions) []mealplan.CellRef {
	if len(opts.OnlyCells) > 0 {
		return opts.OnlyCells
	}
	cells := make([]mealplan.CellRef, 0, request.TotalSlots())
	for _, date := range request.Dates() {
		for _, slot := range request.Slots {
			cells = append(cells, mealplan.CellRef{Date: date, Slot: slot})
		}
	}
	return cells
}

type proposalIngredient struct {
	FoodCode    string  `json:"food_code"`
	QuantityG   float64 `json:"quantity_g"`
	DisplayName string  `json:"display_name"`
}

type proposal struct {
	Name        string               `json:"name"`
	Servings    int                  `json:"servings"`
	Ingredients []proposalIngredient `json:"ingredients"`
}

type proposalEnvelope struct {
	Meals map[string]proposal `json:"meals"`
}

// ParseProposals decodes a model response into meals keyed by cell. Cells
// the model skipped are simply absent; the caller treats them as unfilled.
func ParseProposals(content string, cells []mealplan.CellRef) (outbound.GeneratedMeals, error) {
	var envelope proposalEnvelope
	if err := json.Unmarshal([]byte(StripFences(content)), &envelope); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	meals := make(outbound.GeneratedMeals, len(envelope.Meals))
	for _, cell := range cells {
		p, ok := envelope.Meals[cell.Key()]
		if !ok {
			continue
		}
		ingredients := make([]mealplan.IngredientRef, 0, len(p.Ingredients))
		for _, ing := range p.Ingredients {
			ingredients = append(ingredients, mealplan.IngredientRef{
				FoodCode:    ing.FoodCode,
				QuantityG:   ing.QuantityG,
				DisplayName: ing.DisplayName,
			})
		}
		meals[cell.Key()] = mealplan.Meal{
			ID:          uuid.New(),
			Name:        p.Name,
			Slot:        cell.Slot,
			Date:        cell.Date,
			Ingredients: ingredients,
			Servings:    p.Servings,
		}
	}
	return meals, nil
}

// StripFences removes a markdown code fence around a JSON response.
func StripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
