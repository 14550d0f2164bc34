// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mealforge/v1/internal/application/planner"
	"github.com/mealforge/v1/internal/domain/mealplan"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AI         AIConfig         `mapstructure:"ai"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Database           string        `mapstructure:"database"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// AIConfig contains generative planner configuration
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	OpenAIKey        string        `mapstructure:"openai_key"`
	OpenAIModel      string        `mapstructure:"openai_model"`
	OllamaEndpoint   string        `mapstructure:"ollama_endpoint"`
	OllamaModel      string        `mapstructure:"ollama_model"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RequestsPerMin   int           `mapstructure:"requests_per_min"`
	TranslationQuota int           `mapstructure:"translation_quota"`
}

// PlannerConfig contains meal plan generation tuning. It mirrors
// planner.Config so the service stays decoupled from Viper.
type PlannerConfig struct {
	TargetReuseRatio   float64       `mapstructure:"target_reuse_ratio"`
	RepeatWindowDays   int           `mapstructure:"repeat_window_days"`
	HistoryReuseRatio  float64       `mapstructure:"history_reuse_ratio"`
	MinHistoryRating   float64       `mapstructure:"min_history_rating"`
	MinHistoryScore    float64       `mapstructure:"min_history_score"`
	MaxHistoryUsage    int           `mapstructure:"max_history_usage"`
	HistoryRecencyDays int           `mapstructure:"history_recency_days"`
	FillMode           string        `mapstructure:"fill_mode"`
	MinDBCoverage      float64       `mapstructure:"min_db_coverage"`
	RateLimitPerHour   int           `mapstructure:"rate_limit_per_hour"`
	LockStaleAfter     time.Duration `mapstructure:"lock_stale_after"`
	MinVegetables      int           `mapstructure:"min_vegetables"`
	MinProteinSources  int           `mapstructure:"min_protein_sources"`
	MaxRecipeRepeats   int           `mapstructure:"max_recipe_repeats"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool   `mapstructure:"enable_metrics"`
	MetricsPath     string `mapstructure:"metrics_path"`
	HealthCheckPath string `mapstructure:"health_check_path"`
	ReadinessPath   string `mapstructure:"readiness_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mealforge")
	}

	v.SetEnvPrefix("MEALFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "MealForge")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_cors", true)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.slow_query_threshold", "100ms")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// AI defaults
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.ollama_endpoint", "http://localhost:11434")
	v.SetDefault("ai.ollama_model", "llama3.1")
	v.SetDefault("ai.max_tokens", 2000)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.requests_per_min", 20)
	v.SetDefault("ai.translation_quota", 200)

	// Planner defaults
	v.SetDefault("planner.target_reuse_ratio", 0.7)
	v.SetDefault("planner.repeat_window_days", 7)
	v.SetDefault("planner.history_reuse_ratio", 0.8)
	v.SetDefault("planner.min_history_rating", 3.5)
	v.SetDefault("planner.min_history_score", 0.6)
	v.SetDefault("planner.max_history_usage", 20)
	v.SetDefault("planner.history_recency_days", 3)
	v.SetDefault("planner.fill_mode", "fallback")
	v.SetDefault("planner.min_db_coverage", 0.0)
	v.SetDefault("planner.rate_limit_per_hour", 10)
	v.SetDefault("planner.lock_stale_after", "10m")
	v.SetDefault("planner.min_vegetables", 5)
	v.SetDefault("planner.min_protein_sources", 3)
	v.SetDefault("planner.max_recipe_repeats", 2)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}

	if c.Database.Driver == "postgres" && c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}

	if c.AI.Provider == "openai" && c.AI.OpenAIKey == "" && c.IsProduction() {
		return fmt.Errorf("ai.openai_key is required in production")
	}

	if err := c.ToPlannerConfig().Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}

	return nil
}

// ToPlannerConfig converts the Viper-mapped planner section into the
// explicit config the planning service is constructed with.
func (c *Config) ToPlannerConfig() planner.Config {
	return planner.Config{
		TargetReuseRatio:   c.Planner.TargetReuseRatio,
		RepeatWindowDays:   c.Planner.RepeatWindowDays,
		HistoryReuseRatio:  c.Planner.HistoryReuseRatio,
		MinHistoryRating:   c.Planner.MinHistoryRating,
		MinHistoryScore:    c.Planner.MinHistoryScore,
		MaxHistoryUsage:    c.Planner.MaxHistoryUsage,
		HistoryRecencyDays: c.Planner.HistoryRecencyDays,
		FillMode:           mealplan.FillMode(c.Planner.FillMode),
		MinDBCoverage:      c.Planner.MinDBCoverage,
		RateLimitPerHour:   c.Planner.RateLimitPerHour,
		LockStaleAfter:     c.Planner.LockStaleAfter,
		Variety: planner.VarietyTargets{
			MinDistinctVegetables: c.Planner.MinVegetables,
			MinProteinSources:     c.Planner.MinProteinSources,
			MaxSameRecipeRepeats:  c.Planner.MaxRecipeRepeats,
		},
	}
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		if c.Database.Database == "" {
			return "file::memory:?cache=shared"
		}
		return c.Database.Database
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the host:port pair for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
