// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mealforge/v1/internal/infrastructure/config"
)

// ConnectionManager manages the PostgreSQL connection pool
type ConnectionManager struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

// NewConnectionManager opens the primary connection with pooling configured
// from the database section.
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	gormLogger := logger.New(
		zapWriter{log.Named("gorm")},
		logger.Config{
			SlowThreshold:             cfg.Database.SlowQueryThreshold,
			LogLevel:                  logLevelFor(cfg),
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	log.Info("PostgreSQL connection established",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database),
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
	)

	return &ConnectionManager{
		config: cfg,
		logger: log,
		db:     db,
	}, nil
}

// DB returns the GORM database handle
func (cm *ConnectionManager) DB() *gorm.DB {
	return cm.db
}

// Health verifies the connection with a ping
func (cm *ConnectionManager) Health(ctx context.Context) error {
	sqlDB, err := cm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the connection pool
func (cm *ConnectionManager) Close() error {
	sqlDB, err := cm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func logLevelFor(cfg *config.Config) logger.LogLevel {
	if cfg.App.Debug {
		return logger.Info
	}
	return logger.Warn
}

// zapWriter adapts a zap logger to GORM's logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}
