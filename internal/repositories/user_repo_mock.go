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
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user, rejecting a duplicate username.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return apperrors.Conflict("record already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

// GetByID returns a user by their ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("user with ID %s not found", id))
	}
	return &user, nil
}

// GetByUsername returns a user by their username.
func (r *MockUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username },
		fmt.Sprintf("user with username %s not found", username))
}

// GetByEmail returns a user by their email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email },
		fmt.Sprintf("user with email %s not found", email))
}

func (r *MockUserRepository) find(match func(models.User) bool, notFound string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, apperrors.NotFound(notFound)
}

// List returns all users ordered by creation time.
func (r *MockUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// Count returns the number of users.
func (r *MockUserRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

// UpdateFields applies the known columns of fields to the stored user.
func (r *MockUserRepository) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("user with ID %s not found for update", id))
	}
	if name, ok := fields["username"].(string); ok {
		for otherID, u := range r.users {
			if otherID != id && u.Username == name {
				return apperrors.Conflict("record already exists")
			}
		}
		user.Username = name
	}
	if v, ok := fields["email"].(string); ok {
		user.Email = v
	}
	if v, ok := fields["full_name"].(string); ok {
		user.FullName = v
	}
	if v, ok := fields["password_hash"].(string); ok {
		user.PasswordHash = v
	}
	if v, ok := fields["is_active"].(bool); ok {
		user.IsActive = v
	}
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// SetActive toggles the active flag, keeping at least one active user.
func (r *MockUserRepository) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("user with ID %s not found", id))
	}
	if !active && user.IsActive && r.activeOthers(id) == 0 {
		return apperrors.PreconditionFailed("cannot deactivate the last active user")
	}
	user.IsActive = active
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// Delete removes a user unless it is the last user or the last active one.
func (r *MockUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("user with ID %s not found for deletion", id))
	}
	if len(r.users) <= 1 {
		return apperrors.PreconditionFailed("cannot delete the last user")
	}
	if user.IsActive && r.activeOthers(id) == 0 {
		return apperrors.PreconditionFailed("cannot delete the last active user")
	}
	delete(r.users, id)
	return nil
}

func (r *MockUserRepository) activeOthers(id string) int {
	n := 0
	for otherID, u := range r.users {
		if otherID != id && u.IsActive {
			n++
		}
	}
	return n
}
