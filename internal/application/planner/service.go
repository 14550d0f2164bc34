// Package planner implements plan generation: a database-first fill over
// ranked candidate tiers, bounded generative fallback, variety enforcement,
// household scaling and a durable run ledger.
package planner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/inbound"
	"github.com/mealforge/v1/internal/ports/outbound"
	apperrors "github.com/mealforge/v1/pkg/errors"
	"go.uber.org/zap"
)

const planCacheTTL = 10 * time.Minute

// Metrics receives run-level observations. The prometheus implementation
// lives in the monitoring package; tests use the no-op.
type Metrics interface {
	ObserveRun(runType, status string, duration time.Duration)
	ObserveDBCoverage(coverage float64)
	ObserveFallbackSlots(count int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveRun(string, string, time.Duration) {}
func (NopMetrics) ObserveDBCoverage(float64)                {}
func (NopMetrics) ObserveFallbackSlots(int)                 {}

// Dependencies collects the outbound ports the service drives.
type Dependencies struct {
	Plans       outbound.MealPlanRepository
	Runs        outbound.RunRepository
	Recipes     outbound.UserRecipeStore
	History     outbound.MealHistoryStore
	Ingredients outbound.IngredientResolver
	Profiles    outbound.ProfileProvider
	Deriver     outbound.RuleDeriver
	Validator   outbound.ConstraintValidator
	Generator   outbound.GenerativePlanner
	Enrichment  outbound.EnrichmentService
	Translator  outbound.TranslationService
	Guardrails  outbound.GuardrailsEvaluator
	Cache       outbound.CacheRepository
	Metrics     Metrics
	Logger      *zap.Logger
}

// Service orchestrates plan creation, regeneration and reads.
type Service struct {
	deps     Dependencies
	cfg      Config
	guard    *guard
	source   *candidateSource
	reuse    *historyReuse
	fill     *fillEngine
	fallback *fallbackEngine
	variety  *varietyEnforcer
	tasks    *postCommitTasks
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService wires the pipeline from explicitly injected dependencies and
// configuration. The config is a plain value; there is no global.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	logger := deps.Logger.Named("meal-plan-service")
	return &Service{
		deps:  deps,
		cfg:   cfg,
		guard: newGuard(deps.Runs, cfg, logger),
		source: &candidateSource{
			recipes:     deps.Recipes,
			history:     deps.History,
			ingredients: deps.Ingredients,
			profiles:    deps.Profiles,
			logger:      logger,
		},
		reuse:    &historyReuse{history: deps.History, logger: logger},
		fill:     &fillEngine{validator: deps.Validator, logger: logger},
		fallback: &fallbackEngine{planner: deps.Generator, validator: deps.Validator, logger: logger},
		variety:  &varietyEnforcer{targets: cfg.Variety},
		tasks: &postCommitTasks{
			plans:      deps.Plans,
			history:    deps.History,
			enrichment: deps.Enrichment,
			cache:      deps.Cache,
			logger:     logger,
			sync:       cfg.SyncPostCommit,
		},
		validate: validator.New(),
		logger:   logger,
	}, nil
}

// WithConfig returns a copy of the service running under a different
// configuration. Shared adapters are reused.
func (s *Service) WithConfig(cfg Config) (*Service, error) {
	return NewService(s.deps, cfg)
}

var _ inbound.PlannerService = (*Service)(nil)

// CreatePlan generates a plan for the request or returns the existing plan
// when an identical request was already served.
func (s *Service) CreatePlan(ctx context.Context, cmd inbound.CreatePlanCommand) (*inbound.PlanDTO, error) {
	s.logger.Info("Creating meal plan",
		zap.String("user_id", cmd.UserID),
		zap.Int("days", cmd.Days),
	)
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	prof, err := s.deps.Profiles.LoadProfile(ctx, cmd.UserID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load profile", err)
	}
	locale := s.localeFor(ctx, cmd.UserID)

	request, err := buildRequest(cmd, prof)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	// Idempotent create: identical (user, start date, days, diet) resolves
	// to the existing row, logged as a zero-duration reuse run.
	if existing, err := s.deps.Plans.FindIDByRequestKey(ctx, request.UserID, request.DateFrom, request.Days, prof.DietKey); err == nil && existing != nil {
		s.logReuse(ctx, request.UserID, *existing)
		return s.loadDTO(ctx, *existing, locale)
	} else if err != nil {
		s.logger.Warn("Idempotency lookup failed, generating anyway", zap.Error(err))
	}

	if err := s.guard.admit(ctx, request.UserID, nil, uuid.Nil); err != nil {
		return nil, err
	}

	run := mealplan.NewRun(request.UserID, nil, mealplan.RunTypeGenerate, s.deps.Generator.Model())
	if err := s.deps.Runs.Insert(ctx, run); err != nil {
		return nil, apperrors.NewDatabaseError("open run ledger", err)
	}
	started := time.Now()

	plan, rules, err := s.generateAndPersist(ctx, run, request, locale, nil, true)
	s.finishRun(ctx, run, started, err)
	if err != nil {
		return nil, err
	}
	s.tasks.run(plan, locale)
	return buildDTO(plan, rules, plan.Days()), nil
}

// RegeneratePlan rebuilds an existing plan in place, either fully or for a
// single day, keeping the same plan id.
func (s *Service) RegeneratePlan(ctx context.Context, cmd inbound.RegeneratePlanCommand) (*inbound.PlanDTO, error) {
	s.logger.Info("Regenerating meal plan",
		zap.String("user_id", cmd.UserID),
		zap.String("plan_id", cmd.PlanID.String()),
		zap.Bool("single_day", cmd.Date != nil),
	)
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	record, err := s.deps.Plans.FindByID(ctx, cmd.PlanID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load plan", err)
	}
	if record == nil || record.Plan.Request().UserID != cmd.UserID {
		return nil, apperrors.NewNotFoundError("meal plan")
	}
	request := record.Plan.Request()
	locale := s.localeFor(ctx, cmd.UserID)

	planID := cmd.PlanID
	if err := s.guard.admit(ctx, cmd.UserID, &planID, uuid.Nil); err != nil {
		return nil, err
	}

	run := mealplan.NewRun(cmd.UserID, &planID, mealplan.RunTypeRegenerate, s.deps.Generator.Model())
	if err := s.deps.Runs.Insert(ctx, run); err != nil {
		return nil, apperrors.NewDatabaseError("open run ledger", err)
	}
	started := time.Now()

	plan, rules, err := s.generateAndPersist(ctx, run, request, locale, regenerationSeed(record, cmd.Date), false)
	s.finishRun(ctx, run, started, err)
	if err != nil {
		return nil, err
	}
	s.tasks.run(plan, locale)
	return buildDTO(plan, rules, plan.Days()), nil
}

// GetPlan reads a persisted plan, cache-first, translated best-effort for
// the caller's locale.
func (s *Service) GetPlan(ctx context.Context, query inbound.GetPlanQuery) (*inbound.PlanDTO, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	locale := s.localeFor(ctx, query.UserID)

	if s.deps.Cache != nil {
		if raw, err := s.deps.Cache.Get(ctx, planCacheKey(query.PlanID, locale)); err == nil && len(raw) > 0 {
			var dto inbound.PlanDTO
			if err := json.Unmarshal(raw, &dto); err == nil {
				if dto.UserID != query.UserID {
					return nil, apperrors.NewNotFoundError("meal plan")
				}
				return &dto, nil
			}
		}
	}

	dto, err := s.loadTranslatedDTO(ctx, query.PlanID, query.UserID, locale)
	if err != nil {
		return nil, err
	}

	if s.deps.Cache != nil {
		if raw, err := json.Marshal(dto); err == nil {
			if err := s.deps.Cache.Set(ctx, planCacheKey(query.PlanID, locale), raw, planCacheTTL); err != nil {
				s.logger.Debug("Plan cache write failed", zap.Error(err))
			}
		}
	}
	return dto, nil
}

// generateAndPersist runs the fill pipeline with its bounded retry and
// persists the accepted plan atomically. seed, when non-nil, provides the
// partially kept plan for single-day regeneration and implies Update over
// Create.
func (s *Service) generateAndPersist(ctx context.Context, run *mealplan.Run, request mealplan.PlanRequest, locale profile.Locale, seed func() (*mealplan.MealPlan, error), create bool) (*mealplan.MealPlan, mealplan.DietRuleSet, error) {
	rules, err := s.deps.Deriver.Derive(ctx, request.Profile)
	if err != nil {
		return nil, rules, apperrors.Wrap(err, "derive diet rules")
	}
	run.ConstraintsInPrompt = rules.PromptConstraints()

	makeDraft := seed
	allowHistory := seed == nil
	if makeDraft == nil {
		planID := run.PlanID
		makeDraft = func() (*mealplan.MealPlan, error) {
			draft, err := mealplan.NewDraft(request)
			if err != nil {
				return nil, err
			}
			if planID != nil {
				draft.WithID(*planID)
			}
			return draft, nil
		}
	}

	plan, err := s.generate(ctx, makeDraft, rules, locale, allowHistory)
	if err != nil {
		return nil, rules, err
	}

	coverage := plan.Metadata().Provenance.DBCoverage()
	s.deps.Metrics.ObserveDBCoverage(coverage)
	s.deps.Metrics.ObserveFallbackSlots(plan.Metadata().Provenance.AISlots)
	if s.cfg.MinDBCoverage > 0 && coverage < s.cfg.MinDBCoverage {
		return nil, rules, apperrors.NewDBCoverageTooLowError(coverage, s.cfg.MinDBCoverage)
	}

	plan.Metadata().Scaling = scaleToHousehold(plan, request.Profile)

	if summary, err := s.deps.Guardrails.Evaluate(ctx, plan.Days(), rules); err != nil {
		s.logger.Warn("Guardrails evaluation failed, persisting unstamped", zap.Error(err))
	} else {
		plan.Metadata().Guardrails = summary
		run.GuardrailsHash = summary.ContentHash
		run.GuardrailsVersion = summary.Version
	}

	record := outbound.PlanRecord{Plan: plan, Rules: rules, Status: "active"}
	if create {
		err = s.deps.Plans.Create(ctx, record)
	} else {
		err = s.deps.Plans.Update(ctx, record)
	}
	if err != nil {
		return nil, rules, apperrors.NewDatabaseError("persist plan", err)
	}
	planID := plan.ID()
	run.PlanID = &planID
	return plan, rules, nil
}

// generate is the bounded-retry loop around one fill attempt. A variety
// shortfall or a transient downstream failure earns exactly one more full
// attempt; structural failures never retry. A plan still under the variety
// targets after the retry is accepted as-is with the shortfall recorded.
func (s *Service) generate(ctx context.Context, makeDraft func() (*mealplan.MealPlan, error), rules mealplan.DietRuleSet, locale profile.Locale, allowHistory bool) (*mealplan.MealPlan, error) {
	var varietyHints []string
	var shortfallPlan *mealplan.MealPlan
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		plan, outcome, err := s.attempt(ctx, makeDraft, rules, locale, allowHistory && attempt == 1, varietyHints, attempt)
		switch outcome {
		case outcomeSatisfied:
			return plan, nil
		case outcomeVarietyShortfall:
			shortfallPlan, lastErr = plan, nil
			varietyHints = s.variety.hints(plan.Metadata().Variety)
		default:
			lastErr = err
		}
		if !shouldRetry(outcome, attempt) {
			break
		}
		s.logger.Info("Discarding attempt, rebuilding the plan",
			zap.Int("attempt", attempt),
			zap.Strings("variety_hints", varietyHints),
		)
	}

	if shortfallPlan != nil {
		return shortfallPlan, nil
	}
	return nil, lastErr
}

// attempt executes one full pass: optional history reuse, then db-first fill
// and generative fallback, then the variety scorecard.
func (s *Service) attempt(ctx context.Context, makeDraft func() (*mealplan.MealPlan, error), rules mealplan.DietRuleSet, locale profile.Locale, tryHistory bool, varietyHints []string, attempt int) (*mealplan.MealPlan, attemptOutcome, error) {
	draft, err := makeDraft()
	if err != nil {
		return nil, outcomeStructural, apperrors.NewValidationError(err.Error())
	}

	if tryHistory {
		reused, err := s.reuse.attempt(ctx, draft, s.cfg, time.Now())
		if err != nil {
			s.logger.Warn("History reuse attempt failed, falling through to fill", zap.Error(err))
		} else if reused != nil {
			return s.scoreAttempt(reused, attempt)
		}
	}

	pools, err := s.source.load(ctx, draft.Request(), s.cfg)
	if err != nil {
		return nil, outcomeTransient, apperrors.NewDatabaseError("load candidates", err)
	}

	deferred, err := s.fill.fill(draft, pools, rules, s.cfg)
	if err != nil {
		return nil, outcomeStructural, err
	}
	if err := s.fallback.resolve(ctx, draft, deferred, rules, locale, varietyHints, s.cfg); err != nil {
		if apperrors.Is(err, apperrors.CodeAgentError) {
			return nil, outcomeTransient, err
		}
		return nil, outcomeStructural, err
	}
	if err := draft.ValidateComplete(); err != nil {
		return nil, outcomeStructural, apperrors.NewInsufficientCandidatesError(len(draft.Placeholders()))
	}
	return s.scoreAttempt(draft, attempt)
}

func (s *Service) scoreAttempt(plan *mealplan.MealPlan, attempt int) (*mealplan.MealPlan, attemptOutcome, error) {
	card := s.variety.score(plan.Days(), plan.Request().Days)
	card.AttemptsUsed = attempt
	plan.Metadata().Variety = card
	if card.TargetsMet {
		return plan, outcomeSatisfied, nil
	}
	return plan, outcomeVarietyShortfall, nil
}

// finishRun closes the ledger row in a finally-equivalent path, detached
// from request cancellation so the lock is always released.
func (s *Service) finishRun(ctx context.Context, run *mealplan.Run, started time.Time, opErr error) {
	duration := time.Since(started)
	if opErr == nil {
		run.Complete(duration)
	} else {
		run.Fail(duration, string(apperrors.GetCode(opErr)), ledgerMessage(opErr))
	}
	if err := s.deps.Runs.Update(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("Run ledger update failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	s.deps.Metrics.ObserveRun(string(run.Type), string(run.Status), duration)
}

func (s *Service) logReuse(ctx context.Context, userID string, planID uuid.UUID) {
	run := mealplan.NewRun(userID, &planID, mealplan.RunTypeReuse, "")
	run.Complete(0)
	if err := s.deps.Runs.Insert(ctx, run); err != nil {
		s.logger.Warn("Reuse run insert failed", zap.Error(err))
	}
	s.logger.Info("Returning existing plan for identical request",
		zap.String("plan_id", planID.String()),
	)
	s.deps.Metrics.ObserveRun(string(mealplan.RunTypeReuse), string(mealplan.RunStatusSuccess), 0)
}

func (s *Service) localeFor(ctx context.Context, userID string) profile.Locale {
	locale, err := s.deps.Profiles.Language(ctx, userID)
	if err != nil || locale == "" {
		return profile.DefaultLocale
	}
	return locale
}

func (s *Service) loadDTO(ctx context.Context, planID uuid.UUID, locale profile.Locale) (*inbound.PlanDTO, error) {
	record, err := s.deps.Plans.FindByID(ctx, planID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load plan", err)
	}
	if record == nil {
		return nil, apperrors.NewNotFoundError("meal plan")
	}
	return buildDTO(record.Plan, record.Rules, record.Plan.Days()), nil
}

func (s *Service) loadTranslatedDTO(ctx context.Context, planID uuid.UUID, userID string, locale profile.Locale) (*inbound.PlanDTO, error) {
	record, err := s.deps.Plans.FindByID(ctx, planID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load plan", err)
	}
	if record == nil || record.Plan.Request().UserID != userID {
		return nil, apperrors.NewNotFoundError("meal plan")
	}

	days := record.Plan.Days()
	if locale != profile.DefaultLocale && s.deps.Translator != nil {
		translated, err := s.deps.Translator.TranslateMeals(ctx, days, locale)
		if err != nil {
			s.logger.Warn("Plan translation failed, returning original", zap.Error(err))
		} else {
			days = translated
		}
	}
	return buildDTO(record.Plan, record.Rules, days), nil
}

func regenerationSeed(record *outbound.PlanRecord, date *time.Time) func() (*mealplan.MealPlan, error) {
	if date == nil {
		return nil
	}
	day := *date
	return func() (*mealplan.MealPlan, error) {
		draft := record.Plan.Clone()
		placeholders := make([]mealplan.Meal, 0, len(draft.Request().Slots))
		for _, slot := range draft.Request().Slots {
			placeholders = append(placeholders, mealplan.Meal{Slot: slot, Date: day})
		}
		if err := draft.ReplaceDay(day, placeholders); err != nil {
			return nil, err
		}
		return draft, nil
	}
}

func buildRequest(cmd inbound.CreatePlanCommand, prof profile.Profile) (mealplan.PlanRequest, error) {
	slots := make([]mealplan.Slot, 0, len(cmd.Slots))
	for _, raw := range cmd.Slots {
		slots = append(slots, mealplan.Slot(raw))
	}
	prefs := make(map[mealplan.Slot]string, len(cmd.SlotStylePrefs))
	for slot, pref := range cmd.SlotStylePrefs {
		prefs[mealplan.Slot(slot)] = pref
	}
	request := mealplan.PlanRequest{
		UserID:             cmd.UserID,
		DateFrom:           cmd.DateFrom,
		Days:               cmd.Days,
		Slots:              slots,
		Profile:            prof,
		SlotStylePrefs:     prefs,
		TherapeuticTargets: cmd.TherapeuticTargets,
	}
	if err := request.Validate(); err != nil {
		return mealplan.PlanRequest{}, err
	}
	return request, nil
}

func buildDTO(plan *mealplan.MealPlan, rules mealplan.DietRuleSet, days []mealplan.MealPlanDay) *inbound.PlanDTO {
	request := plan.Request()
	meta := plan.Metadata()
	dto := &inbound.PlanDTO{
		ID:       plan.ID(),
		UserID:   request.UserID,
		DietKey:  rules.DietKey,
		DateFrom: request.DateFrom,
		Metadata: *meta,
		Days:     make([]inbound.DayDTO, 0, len(days)),
	}
	for _, day := range days {
		out := inbound.DayDTO{Date: day.Date, Meals: make([]inbound.MealDTO, 0, len(day.Meals))}
		for _, meal := range day.Meals {
			cell := mealplan.CellRef{Date: day.Date, Slot: meal.Slot}
			out.Meals = append(out.Meals, inbound.MealDTO{
				ID:          meal.ID,
				Name:        meal.Name,
				Slot:        string(meal.Slot),
				Date:        meal.Date,
				Ingredients: meal.Ingredients,
				Servings:    meal.Servings,
				SourceTier:  string(meta.SlotSources[cell.Key()]),
			})
		}
		dto.Days = append(dto.Days, out)
	}
	return dto
}

func ledgerMessage(err error) string {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.LedgerMessage()
	}
	msg := err.Error()
	if len(msg) > apperrors.MaxLedgerMessage {
		msg = msg[:apperrors.MaxLedgerMessage]
	}
	return msg
}

func planCacheKey(id uuid.UUID, locale profile.Locale) string {
	return "mealplan:" + id.String() + ":" + string(locale)
}
