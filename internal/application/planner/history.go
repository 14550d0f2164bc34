package planner

import (
	"context"
	"strings"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
)

// historyReuse decides whether the historical-use store alone can satisfy
// the whole request, skipping fill and fallback entirely.
type historyReuse struct {
	history outbound.MealHistoryStore
	logger  *zap.Logger
}

// attempt tries to fill every cell purely from history under the configured
// quality floors. Returns nil when the filled ratio falls short.
func (h *historyReuse) attempt(ctx context.Context, plan *mealplan.MealPlan, cfg Config, now time.Time) (*mealplan.MealPlan, error) {
	request := plan.Request()

	pools := make(map[mealplan.Slot][]mealplan.Candidate, len(request.Slots))
	for _, slot := range request.Slots {
		pool, err := h.history.FindCandidates(ctx, outbound.HistoryFilter{
			UserID:             request.UserID,
			Slot:               slot,
			StylePref:          request.SlotStylePrefs[slot],
			MinRating:          cfg.MinHistoryRating,
			MinScore:           cfg.MinHistoryScore,
			MaxUsageCount:      cfg.MaxHistoryUsage,
			ExcludeServedSince: recencyCutoff(cfg.HistoryRecencyDays, now),
			Limit:              len(request.Dates()),
		})
		if err != nil {
			return nil, err
		}
		pools[slot] = pool
	}

	draft := plan.Clone()
	filled := 0
	next := make(map[mealplan.Slot]int, len(pools))
	usedOnDay := make(map[string]map[string]bool)

	for _, cell := range draft.Cells() {
		pool := pools[cell.Slot]
		day := cell.Date.Format("2006-01-02")
		if usedOnDay[day] == nil {
			usedOnDay[day] = make(map[string]bool)
		}

		for next[cell.Slot] < len(pool) {
			candidate := pool[next[cell.Slot]]
			next[cell.Slot]++
			base := candidateBase(candidate)
			if usedOnDay[day][base] {
				continue
			}
			if err := draft.SetMeal(cell, candidate.Meal); err != nil {
				return nil, err
			}
			usedOnDay[day][base] = true
			// History items may themselves have been AI-authored, so
			// every reused slot is attributed to the history tier.
			draft.Metadata().RecordSource(cell, mealplan.TierHistory)
			filled++
			break
		}
	}

	total := request.TotalSlots()
	ratio := float64(filled) / float64(total)
	if ratio < cfg.HistoryReuseRatio {
		h.logger.Debug("History reuse rejected",
			zap.Int("filled", filled),
			zap.Int("total", total),
			zap.Float64("ratio", ratio),
		)
		return nil, nil
	}
	if err := draft.ValidateComplete(); err != nil {
		// A ratio of 1.0 is required for a complete plan; partial fills
		// below that always land here and fall through to the fill engine.
		return nil, nil
	}

	h.logger.Info("Plan filled entirely from history",
		zap.Int("slots", total),
	)
	return draft, nil
}

// candidateBase is the identity used for dedup and repeat-window tracking.
// It falls back to the lowercased meal name so meals restored from a plan
// row, which no longer carry a base id, still collide with their source.
func candidateBase(c mealplan.Candidate) string {
	if c.BaseID != "" {
		return c.BaseID
	}
	return strings.ToLower(c.Meal.Name)
}
