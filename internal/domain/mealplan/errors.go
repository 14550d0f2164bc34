package mealplan

import "errors"

// Domain errors for meal plan invariants
var (
	ErrMissingFoodCode = errors.New("ingredient reference is missing a food code")
	ErrInvalidQuantity = errors.New("ingredient quantity must be positive")
	ErrNoSlots         = errors.New("request must name at least one slot")
	ErrNoDays          = errors.New("request must span at least one day")
	ErrTooManyDays     = errors.New("request spans more days than allowed")
	ErrUnknownCell     = errors.New("no such (date, slot) cell in plan")
	ErrPlaceholderMeal = errors.New("placeholder meal is not valid in a finished plan")
	ErrPlanNotComplete = errors.New("plan still contains placeholder cells")
	ErrDuplicateSlot   = errors.New("slot listed twice in request")
)
