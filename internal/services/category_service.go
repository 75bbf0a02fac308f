package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"minimarket/internal/apperrors"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
)

// CategoryService manages product categories by name.
type CategoryService struct {
	repo   repositories.CategoryRepository
	events notifier
}

func NewCategoryService(repo repositories.CategoryRepository, pub EventPublisher, log *slog.Logger) *CategoryService {
	return &CategoryService{repo: repo, events: notifier{pub: pub, log: log}}
}

type categoryName struct {
	Name string `validate:"required,max=100"`
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.repo.List(ctx)
}

// Create adds a category. Names are unique.
func (s *CategoryService) Create(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if err := validateStruct(categoryName{Name: name}); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, apperrors.Conflict("a category with that name already exists")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	category := &models.Category{Name: name}
	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict("a category with that name already exists")
		}
		return nil, err
	}
	s.events.emit(ctx, EventCategoryCreated, category.ID)
	return category, nil
}

// Rename changes the name of the category called oldName.
func (s *CategoryService) Rename(ctx context.Context, oldName, newName string) (*models.Category, error) {
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if err := validateStruct(categoryName{Name: newName}); err != nil {
		return nil, err
	}
	category, err := s.repo.GetByName(ctx, oldName)
	if err != nil {
		return nil, err
	}
	if category.Name == models.ProtectedCategoryName && newName != category.Name {
		return nil, apperrors.PreconditionFailed("the category 'Todos' cannot be renamed")
	}
	if existing, err := s.repo.GetByName(ctx, newName); err == nil && existing.ID != category.ID {
		return nil, apperrors.Conflict("a category with that name already exists")
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if err := s.repo.Rename(ctx, category.ID, newName); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict("a category with that name already exists")
		}
		return nil, err
	}
	s.events.emit(ctx, EventCategoryRenamed, category.ID)
	return s.repo.GetByID(ctx, category.ID)
}

// Delete removes the category called name. The catch-all category and
// categories still holding products are kept.
func (s *CategoryService) Delete(ctx context.Context, name string) error {
	category, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if category.Name == models.ProtectedCategoryName {
		return apperrors.PreconditionFailed("the category 'Todos' cannot be deleted")
	}
	if err := s.repo.Delete(ctx, category.ID); err != nil {
		return err
	}
	s.events.emit(ctx, EventCategoryDeleted, category.ID)
	return nil
}
