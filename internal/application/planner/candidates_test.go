package planner

import (
	"context"
	"testing"
	"time"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPerSlotLimit(t *testing.T) {
	assert.Equal(t, 5, perSlotLimit(14, 0.7, 2), "ceil(14*0.7/2)")
	assert.Equal(t, 7, perSlotLimit(14, 1.0, 2))
	assert.Equal(t, 1, perSlotLimit(3, 0.4, 3))
	assert.Equal(t, 0, perSlotLimit(10, 0.5, 0))
}

func newTestSource(t *testing.T, recipes *fakeRecipeStore, history *fakeHistoryStore, resolver *fakeResolver, profiles *fakeProfiles) *candidateSource {
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	if profiles == nil {
		profiles = &fakeProfiles{}
	}
	return &candidateSource{
		recipes:     recipes,
		history:     history,
		ingredients: resolver,
		profiles:    profiles,
		logger:      zaptest.NewLogger(t),
	}
}

func sourceRequest(days int) mealplan.PlanRequest {
	return mealplan.PlanRequest{
		UserID:   "u1",
		DateFrom: testDate,
		Days:     days,
		Slots:    []mealplan.Slot{mealplan.SlotLunch},
		Profile:  profile.Profile{DietKey: "vegetarian"},
	}
}

func TestCandidateSourceDedupesFirstTierWins(t *testing.T) {
	recipe := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	duplicate := recipe
	duplicate.Tier = mealplan.TierHistory
	duplicate.Rating = 5

	src := newTestSource(t,
		&fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {recipe}}},
		&fakeHistoryStore{candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {duplicate}}},
		nil, nil)

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 1)
	assert.Equal(t, mealplan.TierDB, pools[mealplan.SlotLunch][0].Tier,
		"the first-tier copy wins over its history duplicate")
}

func TestCandidateSourceRanksFavoritesFirst(t *testing.T) {
	plain := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	plain.Score = 1.0
	favored := recipeCandidate(mealplan.SlotLunch, 1, "spinach", "lentil")
	favored.Score = 0.1

	src := newTestSource(t,
		&fakeRecipeStore{
			candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {plain, favored}},
			favorites:  map[string]int{favored.BaseID: 1},
		},
		&fakeHistoryStore{}, nil, nil)

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 2)
	assert.Equal(t, favored.BaseID, pools[mealplan.SlotLunch][0].BaseID,
		"an explicit favorite outranks a higher score")
}

func TestCandidateSourceUsesCarriedFavoriteRank(t *testing.T) {
	plain := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	plain.Score = 1.0
	second := recipeCandidate(mealplan.SlotLunch, 1, "spinach", "lentil")
	second.FavoriteRank = 2
	first := recipeCandidate(mealplan.SlotLunch, 2, "carrot", "chickpea")
	first.FavoriteRank = 1

	src := newTestSource(t,
		&fakeRecipeStore{
			candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {plain, second, first}},
		},
		&fakeHistoryStore{}, nil, nil)

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 3)
	assert.Equal(t, first.BaseID, pools[mealplan.SlotLunch][0].BaseID,
		"the rank carried on the row orders favorites without the lookup map")
	assert.Equal(t, second.BaseID, pools[mealplan.SlotLunch][1].BaseID)
	assert.Equal(t, plain.BaseID, pools[mealplan.SlotLunch][2].BaseID)
}

func TestCandidateSourceEnrichesMissingIngredients(t *testing.T) {
	incomplete := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	incomplete.Meal.Ingredients = nil
	hopeless := recipeCandidate(mealplan.SlotLunch, 1, "spinach", "lentil")
	hopeless.Meal.Ingredients = nil

	refs := []mealplan.IngredientRef{{FoodCode: "veg-broccoli", QuantityG: 150, DisplayName: "broccoli"}}
	src := newTestSource(t,
		&fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: {incomplete, hopeless}}},
		&fakeHistoryStore{},
		&fakeResolver{refs: map[string][]mealplan.IngredientRef{incomplete.BaseID: refs}},
		nil)

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 1, "unresolvable candidates are discarded")
	assert.Equal(t, incomplete.BaseID, pools[mealplan.SlotLunch][0].BaseID)
	assert.Equal(t, refs, pools[mealplan.SlotLunch][0].Meal.Ingredients)
}

func TestCandidateSourceAppliesHardAvoidRules(t *testing.T) {
	byCode := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "tofu")
	bySubstring := recipeCandidate(mealplan.SlotLunch, 1, "spinach", "peanut butter")
	clean := recipeCandidate(mealplan.SlotLunch, 2, "carrot", "lentil")

	src := newTestSource(t,
		&fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{
			mealplan.SlotLunch: {byCode, bySubstring, clean},
		}},
		&fakeHistoryStore{}, nil,
		&fakeProfiles{avoid: []profile.HardAvoidRule{
			{FoodCode: "veg-broccoli"},
			{NameSubstring: "peanut"},
		}})

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 1)
	assert.Equal(t, clean.BaseID, pools[mealplan.SlotLunch][0].BaseID)
}

func TestCandidateSourceAppliesAllergyAndDislikeFilters(t *testing.T) {
	nutty := recipeCandidate(mealplan.SlotLunch, 0, "broccoli", "walnut")
	dull := recipeCandidate(mealplan.SlotLunch, 1, "celery", "tofu")
	clean := recipeCandidate(mealplan.SlotLunch, 2, "carrot", "lentil")

	src := newTestSource(t,
		&fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{
			mealplan.SlotLunch: {nutty, dull, clean},
		}},
		&fakeHistoryStore{}, nil, nil)

	request := sourceRequest(7)
	request.Profile.Allergies = []string{"Walnut"}
	request.Profile.Dislikes = []string{"celery"}

	pools, err := src.load(context.Background(), request, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pools[mealplan.SlotLunch], 1)
	assert.Equal(t, clean.BaseID, pools[mealplan.SlotLunch][0].BaseID)
}

func TestCandidateSourceCapsPoolAtPerSlotLimit(t *testing.T) {
	var pool []mealplan.Candidate
	vegetables := []string{"broccoli", "spinach", "carrot", "tomato", "kale", "pepper", "zucchini", "beet", "leek", "squash"}
	for i := 0; i < 10; i++ {
		pool = append(pool, recipeCandidate(mealplan.SlotLunch, i, vegetables[i], "tofu"))
	}

	src := newTestSource(t,
		&fakeRecipeStore{candidates: map[mealplan.Slot][]mealplan.Candidate{mealplan.SlotLunch: pool}},
		&fakeHistoryStore{}, nil, nil)

	pools, err := src.load(context.Background(), sourceRequest(7), DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, pools[mealplan.SlotLunch], 5, "ceil(7*0.7/1) candidates survive the cap")
}

func TestRecencyCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(0, 0, -3), recencyCutoff(3, now))
	assert.True(t, recencyCutoff(0, now).IsZero(), "a zero window disables the exclusion")
}
