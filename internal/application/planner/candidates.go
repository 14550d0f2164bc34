package planner

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// candidateSource loads reusable candidates per slot from the two tiers,
// ranked and deduplicated, with load-time exclusion filters applied.
type candidateSource struct {
	recipes     outbound.UserRecipeStore
	history     outbound.MealHistoryStore
	ingredients outbound.IngredientResolver
	profiles    outbound.ProfileProvider
	logger      *zap.Logger
}

// loadContext carries the read-only lookup tables fetched once per call.
type loadContext struct {
	favorites  map[string]int
	avoidRules []profile.HardAvoidRule
}

// perSlotLimit derives the candidate cap from the configured reuse target.
func perSlotLimit(totalSlots int, targetReuseRatio float64, slotCount int) int {
	if slotCount == 0 {
		return 0
	}
	return int(math.Ceil(float64(totalSlots) * targetReuseRatio / float64(slotCount)))
}

// load returns ranked candidate pools keyed by slot.
func (s *candidateSource) load(ctx context.Context, request mealplan.PlanRequest, cfg Config) (map[mealplan.Slot][]mealplan.Candidate, error) {
	limit := perSlotLimit(request.TotalSlots(), cfg.TargetReuseRatio, len(request.Slots))

	// The lookup tables are read-only and commutative, so they load
	// concurrently.
	var lc loadContext
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		favorites, err := s.recipes.FavoriteOrder(grpCtx, request.UserID)
		if err != nil {
			s.logger.Warn("Favorite order load failed, ranking without favorites", zap.Error(err))
			favorites = map[string]int{}
		}
		lc.favorites = favorites
		return nil
	})
	grp.Go(func() error {
		avoid, err := s.profiles.HardAvoidRules(grpCtx, request.UserID)
		if err != nil {
			s.logger.Warn("Hard-avoid rule load failed, loading without them", zap.Error(err))
			avoid = nil
		}
		lc.avoidRules = avoid
		return nil
	})
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	pools := make(map[mealplan.Slot][]mealplan.Candidate, len(request.Slots))
	for _, slot := range request.Slots {
		pool, err := s.loadSlot(ctx, request, slot, limit, cfg, lc)
		if err != nil {
			return nil, err
		}
		pools[slot] = pool
	}
	return pools, nil
}

func (s *candidateSource) loadSlot(ctx context.Context, request mealplan.PlanRequest, slot mealplan.Slot, limit int, cfg Config, lc loadContext) ([]mealplan.Candidate, error) {
	stylePref := request.SlotStylePrefs[slot]

	firstTier, err := s.recipes.FindCandidates(ctx, outbound.CandidateFilter{
		UserID:    request.UserID,
		Slot:      slot,
		StylePref: stylePref,
		Limit:     limit * 2, // room for dedup and exclusion losses
	})
	if err != nil {
		return nil, err
	}

	secondTier, err := s.history.FindCandidates(ctx, outbound.HistoryFilter{
		UserID:             request.UserID,
		Slot:               slot,
		StylePref:          stylePref,
		MinRating:          cfg.MinHistoryRating,
		MinScore:           cfg.MinHistoryScore,
		MaxUsageCount:      cfg.MaxHistoryUsage,
		ExcludeServedSince: recencyCutoff(cfg.HistoryRecencyDays, time.Now()),
		Limit:              limit * 2,
	})
	if err != nil {
		return nil, err
	}

	merged := dedupeByBase(append(firstTier, secondTier...))
	merged, err = s.enrichMissingIngredients(ctx, merged)
	if err != nil {
		return nil, err
	}
	merged = applyExclusions(merged, lc.avoidRules, request.Profile)
	rank(merged, lc.favorites)

	if len(merged) > limit {
		merged = merged[:limit]
	}

	s.logger.Debug("Loaded candidate pool",
		zap.String("slot", string(slot)),
		zap.Int("size", len(merged)),
	)
	return merged, nil
}

// dedupeByBase keeps the first occurrence per base identity; first-tier
// entries come first in the input so they win over history duplicates.
func dedupeByBase(candidates []mealplan.Candidate) []mealplan.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := c.BaseID
		if key == "" {
			key = strings.ToLower(c.Meal.Name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// enrichMissingIngredients backfills ingredient references from the
// secondary ingredient table; still-empty candidates are discarded.
func (s *candidateSource) enrichMissingIngredients(ctx context.Context, candidates []mealplan.Candidate) ([]mealplan.Candidate, error) {
	var missing []string
	for _, c := range candidates {
		if !c.HasIngredients() && c.BaseID != "" {
			missing = append(missing, c.BaseID)
		}
	}

	resolved := map[string][]mealplan.IngredientRef{}
	if len(missing) > 0 {
		var err error
		resolved, err = s.ingredients.ResolveIngredients(ctx, missing)
		if err != nil {
			s.logger.Warn("Ingredient enrichment failed, discarding incomplete candidates", zap.Error(err))
			resolved = map[string][]mealplan.IngredientRef{}
		}
	}

	out := candidates[:0]
	for _, c := range candidates {
		if !c.HasIngredients() {
			refs, ok := resolved[c.BaseID]
			if !ok || len(refs) == 0 {
				continue
			}
			c.Meal.Ingredients = refs
		}
		out = append(out, c)
	}
	return out, nil
}

// applyExclusions drops candidates hitting household hard-avoid rules or
// profile allergy/dislike substrings. This is a load-time performance
// optimization, not a substitute for constraint validation.
func applyExclusions(candidates []mealplan.Candidate, avoid []profile.HardAvoidRule, p profile.Profile) []mealplan.Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if blockedByRules(c, avoid) || blockedByProfile(c, p) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func blockedByRules(c mealplan.Candidate, avoid []profile.HardAvoidRule) bool {
	for _, rule := range avoid {
		for _, ref := range c.Meal.Ingredients {
			if rule.FoodCode != "" && rule.FoodCode == ref.FoodCode {
				return true
			}
			if rule.NameSubstring != "" &&
				strings.Contains(strings.ToLower(ref.DisplayName), strings.ToLower(rule.NameSubstring)) {
				return true
			}
		}
	}
	return false
}

func blockedByProfile(c mealplan.Candidate, p profile.Profile) bool {
	terms := make([]string, 0, len(p.Allergies)+len(p.Dislikes))
	for _, t := range append(append([]string{}, p.Allergies...), p.Dislikes...) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	for _, ref := range c.Meal.Ingredients {
		haystack := strings.ToLower(ref.DisplayName + " " + ref.FoodCode)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				return true
			}
		}
	}
	return false
}

// rank orders candidates: favorited first by explicit favorite order, then
// tier signal (score, rating, consumption), then recency.
func rank(candidates []mealplan.Candidate, favorites map[string]int) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		aFav, aOk := favoriteRank(a, favorites)
		bFav, bOk := favoriteRank(b, favorites)
		if aOk != bOk {
			return aOk
		}
		if aOk && bOk && aFav != bFav {
			return aFav < bFav
		}

		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.LastServed.After(b.LastServed)
	})
}

// favoriteRank resolves a candidate's favorite position. Recipe-tier rows
// carry the rank themselves; history-tier rows fall back to the favorite
// order of the matching base recipe.
func favoriteRank(c mealplan.Candidate, favorites map[string]int) (int, bool) {
	if c.FavoriteRank > 0 {
		return c.FavoriteRank, true
	}
	r, ok := favorites[c.BaseID]
	return r, ok && r > 0
}

// recencyCutoff converts the configured exclusion window into a timestamp.
func recencyCutoff(days int, now time.Time) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}
