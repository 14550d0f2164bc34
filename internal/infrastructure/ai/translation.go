package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
)

const translationSystemPrompt = `You translate meal names and plan descriptions.
Respond with a single JSON object and nothing else: {"translations": {"<original>": "<translated>"}}.
Translate only the text, never invent or drop entries.`

// TranslationService localizes plan content on the read path. It is quota
// bounded: once the daily counter is exhausted the input passes through
// unchanged rather than failing the read.
type TranslationService struct {
	llm        ChatCompleter
	cache      outbound.CacheRepository
	dailyQuota int
	logger     *zap.Logger
}

// NewTranslationService creates a new translation service
func NewTranslationService(llm ChatCompleter, cache outbound.CacheRepository, dailyQuota int, logger *zap.Logger) *TranslationService {
	return &TranslationService{
		llm:        llm,
		cache:      cache,
		dailyQuota: dailyQuota,
		logger:     logger.Named("translation"),
	}
}

var _ outbound.TranslationService = (*TranslationService)(nil)

// TranslateMeals localizes meal names for display
func (s *TranslationService) TranslateMeals(ctx context.Context, days []mealplan.MealPlanDay, locale profile.Locale) ([]mealplan.MealPlanDay, error) {
	if locale == profile.DefaultLocale {
		return days, nil
	}

	names := make([]string, 0, len(days)*3)
	seen := make(map[string]bool)
	for _, day := range days {
		for _, meal := range day.Meals {
			if meal.IsPlaceholder() || seen[meal.Name] {
				continue
			}
			seen[meal.Name] = true
			names = append(names, meal.Name)
		}
	}
	if len(names) == 0 {
		return days, nil
	}

	translations, err := s.translate(ctx, names, locale)
	if err != nil {
		return nil, err
	}
	if translations == nil {
		return days, nil
	}

	translated := make([]mealplan.MealPlanDay, len(days))
	for i, day := range days {
		meals := make([]mealplan.Meal, len(day.Meals))
		copy(meals, day.Meals)
		for j := range meals {
			if t, ok := translations[meals[j].Name]; ok && t != "" {
				meals[j].Name = t
			}
		}
		translated[i] = mealplan.MealPlanDay{Date: day.Date, Meals: meals}
	}
	return translated, nil
}

// TranslateEnrichment localizes enrichment text for display
func (s *TranslationService) TranslateEnrichment(ctx context.Context, payload mealplan.EnrichmentPayload, locale profile.Locale) (mealplan.EnrichmentPayload, error) {
	if locale == profile.DefaultLocale {
		return payload, nil
	}

	texts := make([]string, 0, len(payload.PerDay)+1)
	if payload.Summary != "" {
		texts = append(texts, payload.Summary)
	}
	for _, note := range payload.PerDay {
		texts = append(texts, note)
	}
	if len(texts) == 0 {
		return payload, nil
	}

	translations, err := s.translate(ctx, texts, locale)
	if err != nil {
		return mealplan.EnrichmentPayload{}, err
	}
	if translations == nil {
		return payload, nil
	}

	out := mealplan.EnrichmentPayload{
		Summary: payload.Summary,
		PerDay:  make(map[string]string, len(payload.PerDay)),
	}
	if t, ok := translations[payload.Summary]; ok && t != "" {
		out.Summary = t
	}
	for date, note := range payload.PerDay {
		out.PerDay[date] = note
		if t, ok := translations[note]; ok && t != "" {
			out.PerDay[date] = t
		}
	}
	return out, nil
}

// translate returns nil without error when the quota is exhausted.
func (s *TranslationService) translate(ctx context.Context, texts []string, locale profile.Locale) (map[string]string, error) {
	if !s.withinQuota(ctx) {
		s.logger.Debug("Translation quota exhausted, passing through",
			zap.String("locale", string(locale)),
		)
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate into %q:\n", locale)
	for _, t := range texts {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	content, err := s.llm.Complete(ctx, translationSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Translations map[string]string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(StripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse translation response: %w", err)
	}
	return parsed.Translations, nil
}

func (s *TranslationService) withinQuota(ctx context.Context) bool {
	if s.dailyQuota <= 0 {
		return true
	}
	key := "translation:quota:" + time.Now().UTC().Format("2006-01-02")
	count, err := s.cache.Increment(ctx, key, 24*time.Hour)
	if err != nil {
		// quota accounting must not break the read path
		s.logger.Warn("Quota counter unavailable", zap.Error(err))
		return true
	}
	return count <= int64(s.dailyQuota)
}
