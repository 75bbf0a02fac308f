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

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db      *gorm.DB
	timeout opTimeout
}

// NewGORMUserRepository creates a new instance of GORMUserRepository. Every
// operation is bounded by timeout.
func NewGORMUserRepository(db *gorm.DB, timeout time.Duration) *GORMUserRepository {
	return &GORMUserRepository{
		db:      db,
		timeout: opTimeout(timeout),
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "")
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, fmt.Sprintf("user with ID %s not found", id), "id = ?", id)
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, fmt.Sprintf("user with username %s not found", username), "username = ?", username)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, fmt.Sprintf("user with email %s not found", email), "email = ?", email)
}

func (r *GORMUserRepository) first(ctx context.Context, notFound string, query string, args ...interface{}) (*models.User, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var user models.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, translate(err, notFound)
	}
	return &user, nil
}

// List returns every user ordered by creation time.
func (r *GORMUserRepository) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, translate(err, "")
	}
	return users, nil
}

// Count returns the number of stored users.
func (r *GORMUserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, translate(err, "")
	}
	return n, nil
}

// UpdateFields updates the given columns in one statement.
func (r *GORMUserRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(fmt.Sprintf("user with ID %s not found for update", id))
	}
	return nil
}

// userState is the slice of a user row the invariant guards look at.
type userState struct {
	ID       string
	IsActive bool
}

// lockUsers reads every user's id and active flag with the rows locked
// FOR UPDATE, so two transactions guarding the same invariant run one after
// the other instead of both passing on a stale count.
func lockUsers(tx *gorm.DB) ([]userState, error) {
	var rows []userState
	err := tx.Model(&models.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "is_active").
		Find(&rows).Error
	return rows, err
}

// otherActive counts active users other than id.
func otherActive(rows []userState, id string) int {
	n := 0
	for _, u := range rows {
		if u.IsActive && u.ID != id {
			n++
		}
	}
	return n
}

func findUser(rows []userState, id string) (userState, bool) {
	for _, u := range rows {
		if u.ID == id {
			return u, true
		}
	}
	return userState{}, false
}

// SetActive toggles the active flag inside a transaction that keeps at least
// one active user.
func (r *GORMUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := lockUsers(tx)
		if err != nil {
			return err
		}
		user, ok := findUser(rows, id)
		if !ok {
			return apperrors.NotFound(fmt.Sprintf("user with ID %s not found", id))
		}
		if !active && user.IsActive && otherActive(rows, id) == 0 {
			return apperrors.PreconditionFailed("cannot deactivate the last active user")
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Update("is_active", active).Error
	})
	return translate(err, "")
}

// Delete removes a user unless doing so would leave no users or no active user.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.timeout.context(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := lockUsers(tx)
		if err != nil {
			return err
		}
		user, ok := findUser(rows, id)
		if !ok {
			return apperrors.NotFound(fmt.Sprintf("user with ID %s not found for deletion", id))
		}
		if len(rows) <= 1 {
			return apperrors.PreconditionFailed("cannot delete the last user")
		}
		if user.IsActive && otherActive(rows, id) == 0 {
			return apperrors.PreconditionFailed("cannot delete the last active user")
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
	return translate(err, "")
}
