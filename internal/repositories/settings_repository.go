package repositories

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minimarket/internal/models"

	"gorm.io/gorm"
)

// AppConfigRepository stores the singleton storefront settings.
type AppConfigRepository interface {
	Get(ctx context.Context) (*models.AppConfig, error)
	Save(ctx context.Context, cfg *models.AppConfig) error
}

// FeaturedRepository stores the singleton featured-product lists.
type FeaturedRepository interface {
	Get(ctx context.Context) (*models.FeaturedProducts, error)
	Save(ctx context.Context, featured *models.FeaturedProducts) error
}

type GORMAppConfigRepository struct {
	db      *gorm.DB
	timeout opTimeout
}

func NewGORMAppConfigRepository(db *gorm.DB, timeout time.Duration) *GORMAppConfigRepository {
	return &GORMAppConfigRepository{db: db, timeout: opTimeout(timeout)}
}

// Get returns the first settings row, or NotFound when the table is empty.
func (r *GORMAppConfigRepository) Get(ctx context.Context) (*models.AppConfig, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var cfg models.AppConfig
	if err := r.db.WithContext(ctx).Order("id").First(&cfg).Error; err != nil {
		return nil, translate(err, "app config not initialized")
	}
	return &cfg, nil
}

func (r *GORMAppConfigRepository) Save(ctx context.Context, cfg *models.AppConfig) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	return translate(r.db.WithContext(ctx).Save(cfg).Error, "")
}

type GORMFeaturedRepository struct {
	db      *gorm.DB
	timeout opTimeout
}

func NewGORMFeaturedRepository(db *gorm.DB, timeout time.Duration) *GORMFeaturedRepository {
	return &GORMFeaturedRepository{db: db, timeout: opTimeout(timeout)}
}

func (r *GORMFeaturedRepository) Get(ctx context.Context) (*models.FeaturedProducts, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var featured models.FeaturedProducts
	if err := r.db.WithContext(ctx).Order("id").First(&featured).Error; err != nil {
		return nil, translate(err, "featured products not initialized")
	}
	return &featured, nil
}

func (r *GORMFeaturedRepository) Save(ctx context.Context, featured *models.FeaturedProducts) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	return translate(r.db.WithContext(ctx).Save(featured).Error, "")
}

// MockAppConfigRepository keeps the settings in memory, starting from the
// defaults.
type MockAppConfigRepository struct {
	cfg models.AppConfig
	mu  sync.RWMutex
}

func NewMockAppConfigRepository() *MockAppConfigRepository {
	cfg := models.DefaultAppConfig()
	cfg.ID = 1
	return &MockAppConfigRepository{cfg: cfg}
}

func (r *MockAppConfigRepository) Get(_ context.Context) (*models.AppConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg := r.cfg
	return &cfg, nil
}

func (r *MockAppConfigRepository) Save(_ context.Context, cfg *models.AppConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	r.cfg = *cfg
	return nil
}

// MockFeaturedRepository keeps the featured lists in memory, starting empty.
type MockFeaturedRepository struct {
	featured models.FeaturedProducts
	mu       sync.RWMutex
}

func NewMockFeaturedRepository() *MockFeaturedRepository {
	return &MockFeaturedRepository{featured: models.FeaturedProducts{
		ID:      1,
		Popular: []json.RawMessage{},
		OnSale:  []json.RawMessage{},
	}}
}

func (r *MockFeaturedRepository) Get(_ context.Context) (*models.FeaturedProducts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := r.featured
	return &f, nil
}

func (r *MockFeaturedRepository) Save(_ context.Context, featured *models.FeaturedProducts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	featured.UpdatedAt = time.Now()
	r.featured = *featured
	return nil
}
