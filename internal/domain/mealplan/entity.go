// Package mealplan contains the core domain logic for meal plan generation.
// This follows Domain-Driven Design principles with rich domain models.
package mealplan

import (
	"time"

	"github.com/google/uuid"
)

// Meal is one concrete recipe assigned to a (date, slot) cell.
// A Meal with empty name and no ingredient references is a placeholder,
// valid only as scaffolding during fill.
type Meal struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slot        Slot            `json:"slot"`
	Date        time.Time       `json:"date"`
	Ingredients []IngredientRef `json:"ingredients"`
	Servings    int             `json:"servings,omitempty"`
	SourceTier  Tier            `json:"sourceTier,omitempty"`
}

// IsPlaceholder reports whether the meal is empty scaffolding.
func (m Meal) IsPlaceholder() bool {
	return m.Name == "" && len(m.Ingredients) == 0
}

// Validate checks the invariants required of a meal in a finished plan.
func (m Meal) Validate() error {
	if m.IsPlaceholder() {
		return ErrPlaceholderMeal
	}
	if m.Name == "" || len(m.Ingredients) == 0 {
		return ErrPlaceholderMeal
	}
	for _, ref := range m.Ingredients {
		if err := ref.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MealPlanDay is one date with an ordered list of meals, one per slot.
type MealPlanDay struct {
	Date  time.Time `json:"date"`
	Meals []Meal    `json:"meals"`
}

// MealPlan is the aggregate root for a generated plan. It is created as a
// draft skeleton, mutated cell-by-cell during fill, validated, scaled, then
// persisted atomically as one row.
type MealPlan struct {
	id       uuid.UUID
	request  PlanRequest
	days     []MealPlanDay
	metadata Metadata
}

// NewDraft builds the empty day-by-slot skeleton for a request. Every cell
// starts as a placeholder meal.
func NewDraft(request PlanRequest) (*MealPlan, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	days := make([]MealPlanDay, 0, request.Days)
	for _, date := range request.Dates() {
		meals := make([]Meal, 0, len(request.Slots))
		for _, slot := range request.Slots {
			meals = append(meals, Meal{Slot: slot, Date: date})
		}
		days = append(days, MealPlanDay{Date: date, Meals: meals})
	}

	return &MealPlan{
		id:       uuid.New(),
		request:  request,
		days:     days,
		metadata: NewMetadata(request.TotalSlots()),
	}, nil
}

// Restore rebuilds an aggregate from persisted state.
func Restore(id uuid.UUID, request PlanRequest, days []MealPlanDay, metadata Metadata) *MealPlan {
	return &MealPlan{id: id, request: request, days: days, metadata: metadata}
}

// ID returns the plan's unique identifier.
func (p *MealPlan) ID() uuid.UUID { return p.id }

// WithID overrides the plan id; regeneration re-persists over the same row.
func (p *MealPlan) WithID(id uuid.UUID) *MealPlan {
	p.id = id
	return p
}

// Request returns the immutable request snapshot.
func (p *MealPlan) Request() PlanRequest { return p.request }

// Days returns the ordered day list.
func (p *MealPlan) Days() []MealPlanDay { return p.days }

// Metadata returns the plan's metadata bag.
func (p *MealPlan) Metadata() *Metadata { return &p.metadata }

// Cells enumerates all (date, slot) cells in fill order: days chronological,
// slots in request order.
func (p *MealPlan) Cells() []CellRef {
	cells := make([]CellRef, 0, p.request.TotalSlots())
	for _, day := range p.days {
		for _, meal := range day.Meals {
			cells = append(cells, CellRef{Date: day.Date, Slot: meal.Slot})
		}
	}
	return cells
}

// MealAt returns the meal currently occupying a cell.
func (p *MealPlan) MealAt(cell CellRef) (Meal, error) {
	di, mi, ok := p.locate(cell)
	if !ok {
		return Meal{}, ErrUnknownCell
	}
	return p.days[di].Meals[mi], nil
}

// SetMeal writes a meal into a cell, pinning its date and slot to the cell.
func (p *MealPlan) SetMeal(cell CellRef, meal Meal) error {
	di, mi, ok := p.locate(cell)
	if !ok {
		return ErrUnknownCell
	}
	meal.Date = p.days[di].Date
	meal.Slot = cell.Slot
	p.days[di].Meals[mi] = meal
	return nil
}

// ReplaceDay swaps the full meal list of one date; used by single-day
// regeneration.
func (p *MealPlan) ReplaceDay(date time.Time, meals []Meal) error {
	for i := range p.days {
		if sameDate(p.days[i].Date, date) {
			p.days[i].Meals = meals
			return nil
		}
	}
	return ErrUnknownCell
}

// Placeholders lists cells still holding placeholder meals.
func (p *MealPlan) Placeholders() []CellRef {
	var cells []CellRef
	for _, day := range p.days {
		for _, meal := range day.Meals {
			if meal.IsPlaceholder() {
				cells = append(cells, CellRef{Date: day.Date, Slot: meal.Slot})
			}
		}
	}
	return cells
}

// ValidateComplete enforces the finished-plan invariants: no placeholders,
// every meal well-formed, every requested cell present exactly once.
func (p *MealPlan) ValidateComplete() error {
	if len(p.Placeholders()) > 0 {
		return ErrPlanNotComplete
	}
	seen := make(map[string]bool, p.request.TotalSlots())
	for _, day := range p.days {
		for _, meal := range day.Meals {
			if err := meal.Validate(); err != nil {
				return err
			}
			key := CellRef{Date: day.Date, Slot: meal.Slot}.Key()
			if seen[key] {
				return ErrDuplicateSlot
			}
			seen[key] = true
		}
	}
	if len(seen) != p.request.TotalSlots() {
		return ErrUnknownCell
	}
	return nil
}

// Clone returns a deep copy. The fill engine validates candidates against a
// scratch copy of the whole plan before accepting them.
func (p *MealPlan) Clone() *MealPlan {
	days := make([]MealPlanDay, len(p.days))
	for i, day := range p.days {
		meals := make([]Meal, len(day.Meals))
		copy(meals, day.Meals)
		for j := range meals {
			ingredients := make([]IngredientRef, len(day.Meals[j].Ingredients))
			copy(ingredients, day.Meals[j].Ingredients)
			meals[j].Ingredients = ingredients
		}
		days[i] = MealPlanDay{Date: day.Date, Meals: meals}
	}
	clone := &MealPlan{
		id:       p.id,
		request:  p.request,
		days:     days,
		metadata: p.metadata.Clone(),
	}
	return clone
}

func (p *MealPlan) locate(cell CellRef) (dayIdx, mealIdx int, ok bool) {
	for di := range p.days {
		if !sameDate(p.days[di].Date, cell.Date) {
			continue
		}
		for mi := range p.days[di].Meals {
			if p.days[di].Meals[mi].Slot == cell.Slot {
				return di, mi, true
			}
		}
	}
	return 0, 0, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
