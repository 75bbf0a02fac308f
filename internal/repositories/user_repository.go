package repositories

import (
	"context"

	"minimarket/internal/models"
)

// UserRepository defines the interface for credential data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	// UpdateFields applies fields to the user in a single UPDATE statement.
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// SetActive toggles the active flag. Deactivating the last active user
	// fails with PreconditionFailed.
	SetActive(ctx context.Context, id string, active bool) error
	// Delete removes the user unless it is the last user or the last active one.
	Delete(ctx context.Context, id string) error
}
