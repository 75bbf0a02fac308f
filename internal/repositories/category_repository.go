package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"minimarket/internal/apperrors"
	"minimarket/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	// List returns every category ordered by name.
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db      *gorm.DB
	timeout opTimeout
}

func NewGORMCategoryRepository(db *gorm.DB, timeout time.Duration) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db, timeout: opTimeout(timeout)}
}

func (r *GORMCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name asc").Find(&categories).Error; err != nil {
		return nil, translate(err, "")
	}
	return categories, nil
}

func (r *GORMCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("category with ID %s not found", id))
	}
	return &category, nil
}

func (r *GORMCategoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("category %s not found", name))
	}
	return &category, nil
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return translate(err, "")
	}
	return nil
}

func (r *GORMCategoryRepository) Rename(ctx context.Context, id, name string) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(fmt.Sprintf("category with ID %s not found for update", id))
	}
	return nil
}

// Delete removes the category unless products still reference it.
func (r *GORMCategoryRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return apperrors.PreconditionFailed(fmt.Sprintf("category is used by %d products", inUse))
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound(fmt.Sprintf("category with ID %s not found for deletion", id))
		}
		return nil
	})
	return translate(err, "")
}

// MockCategoryRepository is an in-memory implementation of CategoryRepository.
// Products is consulted on Delete when set.
type MockCategoryRepository struct {
	categories map[string]models.Category
	Products   ProductRepository
	mu         sync.RWMutex
}

func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{categories: make(map[string]models.Category)}
}

func (r *MockCategoryRepository) List(_ context.Context) ([]models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r *MockCategoryRepository) GetByID(_ context.Context, id string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("category with ID %s not found", id))
	}
	return &c, nil
}

func (r *MockCategoryRepository) GetByName(_ context.Context, name string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.categories {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, apperrors.NotFound(fmt.Sprintf("category %s not found", name))
}

func (r *MockCategoryRepository) Create(_ context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.categories {
		if c.Name == category.Name {
			return apperrors.Conflict("record already exists")
		}
	}
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	now := time.Now()
	category.CreatedAt, category.UpdatedAt = now, now
	r.categories[category.ID] = *category
	return nil
}

func (r *MockCategoryRepository) Rename(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[id]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("category with ID %s not found for update", id))
	}
	for otherID, other := range r.categories {
		if otherID != id && other.Name == name {
			return apperrors.Conflict("record already exists")
		}
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	r.categories[id] = c
	return nil
}

func (r *MockCategoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return apperrors.NotFound(fmt.Sprintf("category with ID %s not found for deletion", id))
	}
	if r.Products != nil {
		inUse, err := r.Products.CountByCategory(ctx, id)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return apperrors.PreconditionFailed(fmt.Sprintf("category is used by %d products", inUse))
		}
	}
	delete(r.categories, id)
	return nil
}
