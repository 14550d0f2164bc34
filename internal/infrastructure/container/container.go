// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/mealforge/v1/internal/application/guardrails"
	"github.com/mealforge/v1/internal/application/planner"
	"github.com/mealforge/v1/internal/application/rules"
	"github.com/mealforge/v1/internal/infrastructure/ai"
	"github.com/mealforge/v1/internal/infrastructure/ai/ollama"
	"github.com/mealforge/v1/internal/infrastructure/ai/openai"
	"github.com/mealforge/v1/internal/infrastructure/config"
	"github.com/mealforge/v1/internal/infrastructure/http/apiserver"
	"github.com/mealforge/v1/internal/infrastructure/monitoring"
	gormRepo "github.com/mealforge/v1/internal/infrastructure/persistence/gorm"
	"github.com/mealforge/v1/internal/infrastructure/persistence/memory"
	"github.com/mealforge/v1/internal/infrastructure/persistence/migrations"
	"github.com/mealforge/v1/internal/infrastructure/persistence/postgres"
	redisrepo "github.com/mealforge/v1/internal/infrastructure/persistence/redis"
	"github.com/mealforge/v1/internal/infrastructure/persistence/sqlite"
	"github.com/mealforge/v1/internal/ports/inbound"
	"github.com/mealforge/v1/internal/ports/outbound"
	"github.com/mealforge/v1/pkg/logger"
)

// Module provides all dependency injection modules
var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	DatabaseModule,
	CacheModule,
	RepositoryModule,
	ServiceModule,
	HTTPModule,
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load("")
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// DatabaseModule provides the database connection for the configured driver
var DatabaseModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
		if cfg.Database.Driver == "sqlite" {
			logLevel := gormLogger.Silent
			if cfg.App.Debug {
				logLevel = gormLogger.Info
			}
			db, err := sqlite.SetupDatabase(cfg.Database.Database, logLevel)
			if err != nil {
				return nil, fmt.Errorf("failed to setup SQLite database: %w", err)
			}
			log.Info("Connected to SQLite database",
				zap.String("path", cfg.Database.Database),
			)
			return db, nil
		}

		cm, err := postgres.NewConnectionManager(cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := migrations.New(cm.DB(), log).Up(); err != nil {
				return nil, err
			}
		}
		return cm.DB(), nil
	},
)

// CacheModule provides the cache repository. Development environments fall
// back to the in-memory cache when Redis is unreachable.
var CacheModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (outbound.CacheRepository, error) {
		client, err := redisrepo.NewClient(cfg)
		if err != nil {
			if cfg.IsProduction() {
				return nil, err
			}
			log.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
			return memory.NewCacheRepository(), nil
		}
		return redisrepo.NewCacheRepository(client, log), nil
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	gormRepo.NewMealPlanRepository,
	gormRepo.NewRunRepository,
	gormRepo.NewUserRecipeStore,
	gormRepo.NewMealHistoryStore,
	gormRepo.NewIngredientResolver,
	gormRepo.NewProfileProvider,
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	rules.NewDeriver,

	func() outbound.ConstraintValidator {
		return rules.NewValidator(nil)
	},

	func(log *zap.Logger) outbound.GuardrailsEvaluator {
		return guardrails.NewEvaluator(nil, log)
	},

	// Generative planner, selected by provider. The same client also backs
	// enrichment and translation.
	func(cfg *config.Config, log *zap.Logger) (outbound.GenerativePlanner, ai.ChatCompleter) {
		if cfg.AI.Provider == "ollama" {
			client := ollama.NewClient(cfg, log)
			return client, client
		}
		client := openai.NewClient(cfg, log)
		return client, client
	},

	func(llm ai.ChatCompleter, log *zap.Logger) outbound.EnrichmentService {
		return ai.NewEnrichmentService(llm, log)
	},

	func(llm ai.ChatCompleter, cache outbound.CacheRepository, cfg *config.Config, log *zap.Logger) outbound.TranslationService {
		return ai.NewTranslationService(llm, cache, cfg.AI.TranslationQuota, log)
	},

	func(log *zap.Logger) planner.Metrics {
		return monitoring.NewMetricsCollector(prometheus.DefaultRegisterer, log)
	},

	func(
		cfg *config.Config,
		plans outbound.MealPlanRepository,
		runs outbound.RunRepository,
		recipes outbound.UserRecipeStore,
		history outbound.MealHistoryStore,
		ingredients outbound.IngredientResolver,
		profiles outbound.ProfileProvider,
		deriver outbound.RuleDeriver,
		validator outbound.ConstraintValidator,
		generator outbound.GenerativePlanner,
		enrichment outbound.EnrichmentService,
		translator outbound.TranslationService,
		evaluator outbound.GuardrailsEvaluator,
		cache outbound.CacheRepository,
		metrics planner.Metrics,
		log *zap.Logger,
	) (inbound.PlannerService, error) {
		return planner.NewService(planner.Dependencies{
			Plans:       plans,
			Runs:        runs,
			Recipes:     recipes,
			History:     history,
			Ingredients: ingredients,
			Profiles:    profiles,
			Deriver:     deriver,
			Validator:   validator,
			Generator:   generator,
			Enrichment:  enrichment,
			Translator:  translator,
			Guardrails:  evaluator,
			Cache:       cache,
			Metrics:     metrics,
			Logger:      log,
		}, cfg.ToPlannerConfig())
	},
)

// HTTPModule provides the API server
var HTTPModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, svc inbound.PlannerService, db *gorm.DB) *apiserver.Server {
		checks := map[string]apiserver.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		}
		return apiserver.NewServer(cfg, log, svc, checks)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	server *apiserver.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting MealForge application",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			go func() {
				if err := server.Start(); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down MealForge application")

			if err := server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			sqlDB, err := db.DB()
			if err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Error("Failed to close database connection", zap.Error(err))
				}
			}

			_ = log.Sync()

			return nil
		},
	})
}
