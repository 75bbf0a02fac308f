// Package database opens the GORM handle, sizes its connection pool and owns
// schema migration and default-record seeding.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"minimarket/internal/config"
	"minimarket/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 8 * time.Second

// Open connects using cfg and applies the pool limits. Operations beyond
// MaxOpenConns wait for a free connection.
func Open(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.AppConfig{},
		&models.FeaturedProducts{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// EnsureDefaults creates the singleton settings and featured-list records if
// they do not exist yet. Safe to call any number of times.
func EnsureDefaults(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)

	var cfg models.AppConfig
	err := tx.Order("id").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.DefaultAppConfig()
		if err := tx.Create(&cfg).Error; err != nil {
			return fmt.Errorf("failed to create default app config: %w", err)
		}
		slog.Info("created default app config")
	} else if err != nil {
		return fmt.Errorf("failed to load app config: %w", err)
	}

	var featured models.FeaturedProducts
	err = tx.Order("id").First(&featured).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		featured = models.FeaturedProducts{
			Popular: []json.RawMessage{},
			OnSale:  []json.RawMessage{},
		}
		if err := tx.Create(&featured).Error; err != nil {
			return fmt.Errorf("failed to create default featured products: %w", err)
		}
		slog.Info("created default featured products")
	} else if err != nil {
		return fmt.Errorf("failed to load featured products: %w", err)
	}
	return nil
}
