package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"minimarket/internal/apperrors"
	"minimarket/internal/auth"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
)

// AuthService handles login, token renewal and administrator accounts.
type AuthService struct {
	userRepo repositories.UserRepository
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenManager
	log      *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		log:      log,
	}
}

// LoginResult is returned by Login and Renew.
type LoginResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login verifies a username/password pair and issues a token. An unknown
// username and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "username is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation("username and password are required", fields)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.New(apperrors.KindAccountDisabled, "account is disabled")
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	token, err := s.tokens.Issue(user.ID, user.DisplayName())
	if err != nil {
		return nil, apperrors.Internal("failed to issue token", err)
	}
	s.log.Info("user logged in", "user_id", user.ID)
	return &LoginResult{ID: user.ID, Username: user.Username, Token: token}, nil
}

// Authenticate verifies a token for the auth gate.
func (s *AuthService) Authenticate(token string) (*auth.Identity, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthenticated, "invalid or expired token", err)
	}
	return id, nil
}

// Renew reissues a token for the identity, provided the account still exists
// and is active.
func (s *AuthService) Renew(ctx context.Context, identity *auth.Identity) (*LoginResult, error) {
	user, err := s.userRepo.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindUnauthenticated, "account no longer exists")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.New(apperrors.KindAccountDisabled, "account is disabled")
	}
	token, err := s.tokens.Issue(user.ID, user.DisplayName())
	if err != nil {
		return nil, apperrors.Internal("failed to issue token", err)
	}
	return &LoginResult{ID: user.ID, Username: user.Username, Token: token}, nil
}

// CreateUserInput carries the fields of a new administrator.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"omitempty,email,max=100"`
	FullName string `json:"full_name" validate:"max=100"`
}

// CreateUser registers a new active user.
func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}
	user := &models.User{
		Username:     in.Username,
		PasswordHash: digest,
		Email:        in.Email,
		FullName:     in.FullName,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict("username is already taken")
		}
		return nil, err
	}
	s.log.Info("user created", "user_id", user.ID, "actor", ActorFrom(ctx))
	return user, nil
}

// BootstrapAdmin creates the first administrator. It only succeeds while no
// user exists.
func (s *AuthService) BootstrapAdmin(ctx context.Context, in CreateUserInput) (*models.User, error) {
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperrors.PreconditionFailed("an administrator already exists")
	}
	return s.CreateUser(ctx, in)
}

// UpdateSelfInput carries a self-service profile change. Nil fields are left
// unchanged. The password rotates only when both passwords are given.
type UpdateSelfInput struct {
	Username        *string `json:"username" validate:"omitempty,min=3,max=20,username"`
	Email           *string `json:"email" validate:"omitempty,email,max=100"`
	FullName        *string `json:"full_name" validate:"omitempty,max=100"`
	CurrentPassword string  `json:"password_user"`
	NewPassword     string  `json:"new_password" validate:"omitempty,min=8,max=72"`
}

// UpdateSelf applies in to the account identified by subjectID in a single
// update.
func (s *AuthService) UpdateSelf(ctx context.Context, subjectID string, in UpdateSelfInput) (*models.User, error) {
	in.Username = trimmed(in.Username)
	in.Email = trimmed(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Username != nil && *in.Username != user.Username {
		if err := s.ensureUnique(ctx, user.ID, *in.Username, ""); err != nil {
			return nil, err
		}
		fields["username"] = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		if err := s.ensureUnique(ctx, user.ID, "", *in.Email); err != nil {
			return nil, err
		}
		fields["email"] = *in.Email
	}
	if in.FullName != nil {
		fields["full_name"] = *in.FullName
	}
	if in.NewPassword != "" {
		if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
			return nil, apperrors.New(apperrors.KindInvalidCredentials, "current password is incorrect")
		}
		digest, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return nil, apperrors.Internal("failed to hash password", err)
		}
		fields["password_hash"] = digest
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, user.ID, fields); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return nil, apperrors.Conflict("username is already taken")
			}
			return nil, err
		}
	}
	return s.userRepo.GetByID(ctx, user.ID)
}

// ResetPassword replaces the password of username without knowing the old one.
// Used by operator tooling only.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < 8 {
		return apperrors.Validation("password must have at least 8 characters", map[string]string{"password": "min"})
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}
	return s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"password_hash": digest,
		"is_active":     true,
	})
}

// SetActive enables or disables an account. Disabling the last active account
// is refused.
func (s *AuthService) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.log.Info("user status changed", "user_id", id, "active", active, "actor", ActorFrom(ctx))
	return s.userRepo.GetByID(ctx, id)
}

// DeleteUser removes an account unless it is the last one or the last active one.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", id, "actor", ActorFrom(ctx))
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *AuthService) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		existing, err := s.userRepo.GetByUsername(ctx, username)
		if err == nil && existing.ID != selfID {
			return apperrors.Conflict("username is already taken")
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	if email != "" {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		if err == nil && existing.ID != selfID {
			return apperrors.Conflict("email is already registered")
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
