package repositories

import (
	"context"
	"fmt"
	"time"

	"minimarket/internal/apperrors"
	"minimarket/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db      *gorm.DB
	timeout opTimeout
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB, timeout time.Duration) *GORMProductRepository {
	return &GORMProductRepository{
		db:      db,
		timeout: opTimeout(timeout),
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var products []models.Product
	if err := r.db.WithContext(ctx).Preload("Category").Order("created_at desc").Find(&products).Error; err != nil {
		return nil, translate(err, "")
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("product with ID %s not found", id))
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Category").Create(product).Error; err != nil {
		return translate(err, "")
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&models.Product{ID: product.ID}).
		Select("name", "description", "price", "category_id", "image_url", "status", "stock_quantity", "updated_at").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(fmt.Sprintf("product with ID %s not found for update", product.ID))
	}
	return nil
}

// Delete deletes a product by its ID unless it is the only product left.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The whole set is locked so concurrent deletes serialize on the count.
		var ids []string
		if err := tx.Model(&models.Product{}).Clauses(clause.Locking{Strength: "UPDATE"}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if !containsID(ids, id) {
			return apperrors.NotFound(fmt.Sprintf("product with ID %s not found for deletion", id))
		}
		if len(ids) <= 1 {
			return apperrors.PreconditionFailed("cannot delete the last product")
		}
		return tx.Delete(&models.Product{}, "id = ?", id).Error
	})
	return translate(err, "")
}

// Count returns the number of products.
func (r *GORMProductRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, translate(err, "")
	}
	return n, nil
}

// CountByCategory returns the number of products filed under categoryID.
func (r *GORMProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("category_id = ?", categoryID).Count(&n).Error; err != nil {
		return 0, translate(err, "")
	}
	return n, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
