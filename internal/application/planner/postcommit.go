package planner

import (
	"context"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
)

// postCommitTasks run after a plan is durably persisted. They are strictly
// best-effort: failures are logged and never surface to the caller, and they
// must not mutate the committed plan snapshot.
type postCommitTasks struct {
	plans      outbound.MealPlanRepository
	history    outbound.MealHistoryStore
	enrichment outbound.EnrichmentService
	cache      outbound.CacheRepository
	logger     *zap.Logger
	sync       bool
}

// run dispatches the side-effect tasks. With sync set they execute inline
// before returning, which keeps tests deterministic.
func (t *postCommitTasks) run(plan *mealplan.MealPlan, locale profile.Locale) {
	if t.sync {
		t.execute(context.Background(), plan, locale)
		return
	}
	go t.execute(context.Background(), plan, locale)
}

func (t *postCommitTasks) execute(ctx context.Context, plan *mealplan.MealPlan, locale profile.Locale) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	request := plan.Request()

	if err := t.history.ExtractAndStore(ctx, request.UserID, plan.Days(), request.Profile.DietKey); err != nil {
		t.logger.Warn("History extraction failed",
			zap.String("plan_id", plan.ID().String()),
			zap.Error(err),
		)
	}

	t.recordReuse(ctx, plan)
	t.enrich(ctx, plan, locale)
	t.invalidate(ctx, plan, locale)
}

// recordReuse bumps usage counters for every cell served from an existing
// source so future ranking reflects actual consumption.
func (t *postCommitTasks) recordReuse(ctx context.Context, plan *mealplan.MealPlan) {
	meta := plan.Metadata()
	for _, cell := range plan.Cells() {
		tier, ok := meta.SlotSources[cell.Key()]
		if !ok || tier == mealplan.TierAI {
			continue
		}
		meal, err := plan.MealAt(cell)
		if err != nil {
			continue
		}
		if err := t.history.RecordUsage(ctx, plan.Request().UserID, meal.ID.String()); err != nil {
			t.logger.Warn("Usage recording failed",
				zap.String("cell", cell.Key()),
				zap.Error(err),
			)
		}
	}
}

func (t *postCommitTasks) enrich(ctx context.Context, plan *mealplan.MealPlan, locale profile.Locale) {
	payload, err := t.enrichment.Enrich(ctx, plan.Days(), locale)
	if err != nil {
		t.logger.Warn("Plan enrichment failed",
			zap.String("plan_id", plan.ID().String()),
			zap.Error(err),
		)
		return
	}
	if err := t.plans.SaveEnrichment(ctx, plan.ID(), payload); err != nil {
		t.logger.Warn("Enrichment persist failed",
			zap.String("plan_id", plan.ID().String()),
			zap.Error(err),
		)
	}
}

// invalidate drops the read-side cache entries for the locales this run
// could have populated. Entries for other locales age out by TTL.
func (t *postCommitTasks) invalidate(ctx context.Context, plan *mealplan.MealPlan, locale profile.Locale) {
	if t.cache == nil {
		return
	}
	for _, l := range []profile.Locale{locale, profile.DefaultLocale} {
		if err := t.cache.Delete(ctx, planCacheKey(plan.ID(), l)); err != nil {
			t.logger.Debug("Plan cache invalidation failed", zap.Error(err))
		}
	}
}
