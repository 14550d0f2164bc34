package mealplan

import (
	"fmt"
	"time"

	"github.com/mealforge/v1/internal/domain/profile"
)

// MaxPlanDays bounds the requested date range.
const MaxPlanDays = 31

// PlanRequest describes one multi-day, multi-slot plan to generate.
// It is immutable once stored as the plan's request snapshot.
type PlanRequest struct {
	UserID             string             `json:"userId"`
	DateFrom           time.Time          `json:"dateFrom"`
	Days               int                `json:"days"`
	Slots              []Slot             `json:"slots"`
	Profile            profile.Profile    `json:"profile"`
	SlotStylePrefs     map[Slot]string    `json:"slotStylePrefs,omitempty"`
	TherapeuticTargets map[string]float64 `json:"therapeuticTargets,omitempty"`
}

// Validate checks the structural shape of the request.
func (r PlanRequest) Validate() error {
	if r.Days < 1 {
		return ErrNoDays
	}
	if r.Days > MaxPlanDays {
		return ErrTooManyDays
	}
	if len(r.Slots) == 0 {
		return ErrNoSlots
	}
	seen := make(map[Slot]bool, len(r.Slots))
	for _, s := range r.Slots {
		if seen[s] {
			return ErrDuplicateSlot
		}
		seen[s] = true
	}
	return nil
}

// Dates returns the requested dates in chronological order.
func (r PlanRequest) Dates() []time.Time {
	dates := make([]time.Time, r.Days)
	day := r.DateFrom.Truncate(24 * time.Hour)
	for i := range dates {
		dates[i] = day.AddDate(0, 0, i)
	}
	return dates
}

// TotalSlots is the number of (date, slot) cells the request demands.
func (r PlanRequest) TotalSlots() int {
	return r.Days * len(r.Slots)
}

// IdempotencyKey identifies a create request: two requests with the same key
// must resolve to the same plan row.
func (r PlanRequest) IdempotencyKey() string {
	return fmt.Sprintf("%s|%s|%d|%s",
		r.UserID, r.DateFrom.Format("2006-01-02"), r.Days, r.Profile.DietKey)
}
