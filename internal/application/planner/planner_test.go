// Package planner tests drive the full generation pipeline against
// in-memory fakes of the outbound ports.
package planner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/application/rules"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/inbound"
	"github.com/mealforge/v1/internal/ports/outbound"
	"go.uber.org/zap/zaptest"
)

// --- fakes ---

type fakePlanRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*outbound.PlanRecord
	createErr error
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{records: make(map[uuid.UUID]*outbound.PlanRecord)}
}

func (r *fakePlanRepo) Create(ctx context.Context, record outbound.PlanRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Plan.ID()] = &record
	return nil
}

func (r *fakePlanRepo) Update(ctx context.Context, record outbound.PlanRecord) error {
	return r.Create(ctx, record)
}

func (r *fakePlanRepo) FindByID(ctx context.Context, id uuid.UUID) (*outbound.PlanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return record, nil
}

func (r *fakePlanRepo) FindIDByRequestKey(ctx context.Context, userID string, dateFrom time.Time, days int, dietKey string) (*uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, record := range r.records {
		req := record.Plan.Request()
		if req.UserID == userID && sameDay(req.DateFrom, dateFrom) && req.Days == days && req.Profile.DietKey == dietKey {
			found := id
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakePlanRepo) SaveEnrichment(ctx context.Context, id uuid.UUID, payload mealplan.EnrichmentPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[id]; ok {
		record.Enrichment = &payload
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

type fakeRunRepo struct {
	mu         sync.Mutex
	runs       map[uuid.UUID]*mealplan.Run
	reclaimErr error
	countErr   error
	findErr    error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*mealplan.Run)}
}

func (r *fakeRunRepo) Insert(ctx context.Context, run *mealplan.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *run
	r.runs[run.ID] = &clone
	return nil
}

func (r *fakeRunRepo) Update(ctx context.Context, run *mealplan.Run) error {
	return r.Insert(ctx, run)
}

func (r *fakeRunRepo) ReclaimStale(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	if r.reclaimErr != nil {
		return 0, r.reclaimErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reclaimed := 0
	for _, run := range r.runs {
		if run.UserID == userID && run.StaleSince(cutoff) {
			run.Status = mealplan.RunStatusError
			run.ErrorCode = mealplan.ErrCodeTimeout
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (r *fakeRunRepo) CountCompletedSince(ctx context.Context, userID string, since time.Time, types []mealplan.RunType) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, run := range r.runs {
		if run.UserID != userID || run.Status == mealplan.RunStatusRunning || run.CreatedAt.Before(since) {
			continue
		}
		for _, t := range types {
			if run.Type == t {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeRunRepo) FindRunning(ctx context.Context, userID string, planID *uuid.UUID, excludeRun uuid.UUID) (*mealplan.Run, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.UserID != userID || run.Status != mealplan.RunStatusRunning || run.ID == excludeRun {
			continue
		}
		if planID == nil || run.PlanID == nil || *run.PlanID == *planID {
			clone := *run
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) byType(runType mealplan.RunType) []*mealplan.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mealplan.Run
	for _, run := range r.runs {
		if run.Type == runType {
			clone := *run
			out = append(out, &clone)
		}
	}
	return out
}

type fakeRecipeStore struct {
	candidates map[mealplan.Slot][]mealplan.Candidate
	favorites  map[string]int
	err        error
}

func (s *fakeRecipeStore) FindCandidates(ctx context.Context, filter outbound.CandidateFilter) ([]mealplan.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	pool := s.candidates[filter.Slot]
	if filter.Limit > 0 && len(pool) > filter.Limit {
		pool = pool[:filter.Limit]
	}
	return append([]mealplan.Candidate(nil), pool...), nil
}

func (s *fakeRecipeStore) FavoriteOrder(ctx context.Context, userID string) (map[string]int, error) {
	if s.favorites == nil {
		return map[string]int{}, nil
	}
	return s.favorites, nil
}

type fakeHistoryStore struct {
	mu         sync.Mutex
	candidates map[mealplan.Slot][]mealplan.Candidate
	usage      []string
	extracted  int
	err        error
}

func (s *fakeHistoryStore) FindCandidates(ctx context.Context, filter outbound.HistoryFilter) ([]mealplan.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []mealplan.Candidate
	for _, c := range s.candidates[filter.Slot] {
		if filter.MinRating > 0 && c.Rating < filter.MinRating {
			continue
		}
		if filter.MinScore > 0 && c.Score < filter.MinScore {
			continue
		}
		if filter.MaxUsageCount > 0 && c.UsageCount > filter.MaxUsageCount {
			continue
		}
		if !filter.ExcludeServedSince.IsZero() && c.LastServed.After(filter.ExcludeServedSince) {
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *fakeHistoryStore) RecordUsage(ctx context.Context, userID, mealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, mealID)
	return nil
}

func (s *fakeHistoryStore) ExtractAndStore(ctx context.Context, userID string, days []mealplan.MealPlanDay, dietKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extracted++
	return nil
}

type fakeResolver struct {
	refs map[string][]mealplan.IngredientRef
}

func (r *fakeResolver) ResolveIngredients(ctx context.Context, baseIDs []string) (map[string][]mealplan.IngredientRef, error) {
	out := make(map[string][]mealplan.IngredientRef)
	for _, id := range baseIDs {
		if refs, ok := r.refs[id]; ok {
			out[id] = refs
		}
	}
	return out, nil
}

type fakeProfiles struct {
	profile profile.Profile
	locale  profile.Locale
	avoid   []profile.HardAvoidRule
}

func (p *fakeProfiles) LoadProfile(ctx context.Context, userID string) (profile.Profile, error) {
	prof := p.profile
	prof.UserID = userID
	return prof, nil
}

func (p *fakeProfiles) Language(ctx context.Context, userID string) (profile.Locale, error) {
	return p.locale, nil
}

func (p *fakeProfiles) HardAvoidRules(ctx context.Context, userID string) ([]profile.HardAvoidRule, error) {
	return p.avoid, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	err      error
	calls    int
	lastOpts outbound.GenerateOptions
	// propose builds a meal for a cell; defaults to a vegetable-rich dish.
	propose func(cell mealplan.CellRef, call int) mealplan.Meal
}

func (g *fakeGenerator) Generate(ctx context.Context, request mealplan.PlanRequest, locale profile.Locale, opts outbound.GenerateOptions) (outbound.GeneratedMeals, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastOpts = opts
	if g.err != nil {
		return nil, g.err
	}
	out := make(outbound.GeneratedMeals, len(opts.OnlyCells))
	for i, cell := range opts.OnlyCells {
		if g.propose != nil {
			out[cell.Key()] = g.propose(cell, g.calls)
			continue
		}
		out[cell.Key()] = generatedMeal(cell, i)
	}
	return out, nil
}

func (g *fakeGenerator) Model() string { return "test-model" }

type fakeEnrichment struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeEnrichment) Enrich(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) (mealplan.EnrichmentPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return mealplan.EnrichmentPayload{}, e.err
	}
	return mealplan.EnrichmentPayload{Summary: "a balanced week"}, nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
}

func (t *fakeTranslator) TranslateMeals(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) ([]mealplan.MealPlanDay, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	out := make([]mealplan.MealPlanDay, len(days))
	copy(out, days)
	for i := range out {
		meals := make([]mealplan.Meal, len(out[i].Meals))
		copy(meals, out[i].Meals)
		for j := range meals {
			meals[j].Name = string(locale) + ": " + meals[j].Name
		}
		out[i].Meals = meals
	}
	return out, nil
}

func (t *fakeTranslator) TranslateEnrichment(ctx context.Context, payload mealplan.EnrichmentPayload, locale profile.Locale) (mealplan.EnrichmentPayload, error) {
	return payload, nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{items: make(map[string][]byte)} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *fakeCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(1)
	if c.items[key] != nil {
		n = int64(len(c.items[key])) + 1
	}
	c.items[key] = make([]byte, n)
	return n, nil
}

// --- builders ---

type harness struct {
	service  *Service
	plans    *fakePlanRepo
	runs     *fakeRunRepo
	recipes  *fakeRecipeStore
	history  *fakeHistoryStore
	profiles *fakeProfiles
	gen      *fakeGenerator
	enrich   *fakeEnrichment
	trans    *fakeTranslator
	cache    *fakeCache
}

func newHarness(t *testing.T, cfg Config) *harness {
	logger := zaptest.NewLogger(t)
	h := &harness{
		plans:    newFakePlanRepo(),
		runs:     newFakeRunRepo(),
		recipes:  &fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{}},
		history:  &fakeHistoryStore{candidates: map[mealplan.Slot][]mealplan.Candidate{}},
		profiles: &fakeProfiles{profile: profile.Profile{DietKey: "vegetarian"}},
		gen:      &fakeGenerator{},
		enrich:   &fakeEnrichment{},
		trans:    &fakeTranslator{},
		cache:    newFakeCache(),
	}
	cfg.SyncPostCommit = true
	service, err := NewService(Dependencies{
		Plans:       h.plans,
		Runs:        h.runs,
		Recipes:     h.recipes,
		History:     h.history,
		Ingredients: &fakeResolver{},
		Profiles:    h.profiles,
		Deriver:     rules.NewDeriver(logger),
		Validator:   rules.NewValidator(nil),
		Generator:   h.gen,
		Enrichment:  h.enrich,
		Translator:  h.trans,
		Guardrails:  allowAllGuardrails{},
		Cache:       h.cache,
		Logger:      logger,
	}, cfg)
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}
	h.service = service
	return h
}

type allowAllGuardrails struct{}

func (allowAllGuardrails) Evaluate(ctx context.Context, days []mealplan.MealPlanDay, rules mealplan.DietRuleSet) (mealplan.GuardrailsSummary, error) {
	return mealplan.GuardrailsSummary{Allowed: true, ContentHash: "testhash", Version: "v1"}, nil
}

var testDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testCommand(days int) inbound.CreatePlanCommand {
	return inbound.CreatePlanCommand{
		UserID:   "user-1",
		DateFrom: testDate,
		Days:     days,
		Slots:    []string{"lunch", "dinner"},
	}
}

// seedVariedRecipes fills the first-tier store with enough distinct
// vegetable and protein coverage to satisfy the default variety targets.
func seedVariedRecipes(h *harness, slots ...mealplan.Slot) {
	vegetables := []string{"broccoli", "spinach", "carrot", "zucchini", "tomato", "pepper", "kale", "cauliflower"}
	proteins := []string{"tofu", "egg", "yogurt", "lentil", "cheese", "chickpea"}
	for _, slot := range slots {
		var pool []mealplan.Candidate
		for i := 0; i < 8; i++ {
			pool = append(pool, recipeCandidate(slot, i, vegetables[i%len(vegetables)], proteins[i%len(proteins)]))
		}
		h.recipes.candidates[slot] = pool
	}
}

func recipeCandidate(slot mealplan.Slot, n int, vegetable, proteinSource string) mealplan.Candidate {
	name := fmt.Sprintf("%s %s with %s %d", vegetable, string(slot), proteinSource, n)
	return mealplan.Candidate{
		Meal: mealplan.Meal{
			ID:   uuid.New(),
			Name: name,
			Slot: slot,
			Ingredients: []mealplan.IngredientRef{
				{FoodCode: "veg-" + vegetable, QuantityG: 150, DisplayName: vegetable},
				{FoodCode: "prot-" + proteinSource, QuantityG: 120, DisplayName: proteinSource},
			},
			Servings: 2,
		},
		Tier:   mealplan.TierDB,
		BaseID: fmt.Sprintf("recipe-%s-%d", slot, n),
		Score:  1.0 - float64(n)*0.05,
	}
}

func historyCandidate(slot mealplan.Slot, n int, vegetable, proteinSource string, rating, score float64) mealplan.Candidate {
	c := recipeCandidate(slot, n, vegetable, proteinSource)
	c.Tier = mealplan.TierHistory
	c.BaseID = fmt.Sprintf("history-%s-%d", slot, n)
	c.Rating = rating
	c.Score = score
	c.LastServed = testDate.AddDate(0, 0, -30)
	return c
}

func generatedMeal(cell mealplan.CellRef, n int) mealplan.Meal {
	vegetables := []string{"asparagus", "mushroom", "leek", "beet", "squash", "cucumber"}
	proteins := []string{"tofu", "egg", "lentil", "chickpea"}
	veg := vegetables[n%len(vegetables)]
	prot := proteins[n%len(proteins)]
	return mealplan.Meal{
		ID:   uuid.New(),
		Name: fmt.Sprintf("Generated %s and %s bowl %d", veg, prot, n),
		Slot: cell.Slot,
		Date: cell.Date,
		Ingredients: []mealplan.IngredientRef{
			{FoodCode: "veg-" + veg, QuantityG: 140, DisplayName: veg},
			{FoodCode: "prot-" + prot, QuantityG: 110, DisplayName: prot},
		},
		Servings: 2,
	}
}
