package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"minimarket/internal/apperrors"
	"minimarket/internal/images"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
)

// ImagePipeline turns an uploaded file into a hosted image URL.
type ImagePipeline interface {
	Process(ctx context.Context, contentType string, raw []byte) (string, error)
}

var _ ImagePipeline = (*images.Pipeline)(nil)

// ImageUpload is a file received with a product write.
type ImageUpload struct {
	ContentType string
	Data        []byte
}

// ProductInput carries the fields of a new product.
type ProductInput struct {
	Name          string  `validate:"required,max=200"`
	Description   string  `validate:"max=5000"`
	Price         float64 `validate:"gte=0"`
	CategoryID    string  `validate:"required"`
	Status        string  `validate:"omitempty,oneof=available outOfStock"`
	StockQuantity int     `validate:"gte=0"`
}

// ProductPatch carries a partial product update. Nil fields are unchanged.
type ProductPatch struct {
	Name          *string  `validate:"omitempty,min=1,max=200"`
	Description   *string  `validate:"omitempty,max=5000"`
	Price         *float64 `validate:"omitempty,gte=0"`
	CategoryID    *string  `validate:"omitempty,min=1"`
	Status        *string  `validate:"omitempty,oneof=available outOfStock"`
	StockQuantity *int     `validate:"omitempty,gte=0"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
	images     ImagePipeline
	events     notifier
}

// NewProductService creates a new ProductService. pub may be nil.
func NewProductService(repo repositories.ProductRepository, categories repositories.CategoryRepository, pipeline ImagePipeline, pub EventPublisher, log *slog.Logger) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		images:     pipeline,
		events:     notifier{pub: pub, log: log},
	}
}

// GetAllProducts retrieves all products, newest first.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct stores a new product. When img is set it is normalized and
// uploaded first; a pipeline failure leaves nothing persisted.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput, img *ImageUpload) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	imageURL := ""
	if img != nil {
		url, err := s.images.Process(ctx, img.ContentType, img.Data)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	status := in.Status
	if status == "" {
		status = models.ProductAvailable
	}
	product := &models.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		CategoryID:    in.CategoryID,
		ImageURL:      imageURL,
		Status:        status,
		StockQuantity: in.StockQuantity,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.events.emit(ctx, EventProductCreated, product.ID)
	return s.reload(ctx, product)
}

// UpdateProduct applies patch to product id. A new image replaces the stored
// URL only after it has been uploaded.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch ProductPatch, img *ImageUpload) (*models.Product, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.CategoryID != nil && *patch.CategoryID != product.CategoryID {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *patch.CategoryID
	}
	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Status != nil {
		product.Status = *patch.Status
	}
	if patch.StockQuantity != nil {
		product.StockQuantity = *patch.StockQuantity
	}

	if img != nil {
		url, err := s.images.Process(ctx, img.ContentType, img.Data)
		if err != nil {
			return nil, err
		}
		product.ImageURL = url
	}

	product.Category = nil
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.events.emit(ctx, EventProductUpdated, product.ID)
	return s.reload(ctx, product)
}

// DeleteProduct deletes a product by its ID. The last product cannot be
// deleted.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.emit(ctx, EventProductDeleted, id)
	return nil
}

func (s *ProductService) requireCategory(ctx context.Context, categoryID string) error {
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Validation("selected category does not exist",
				map[string]string{"category_id": "category does not exist"})
		}
		return err
	}
	return nil
}

func (s *ProductService) reload(ctx context.Context, product *models.Product) (*models.Product, error) {
	fresh, err := s.repo.GetByID(ctx, product.ID)
	if err != nil {
		return product, nil
	}
	return fresh, nil
}
