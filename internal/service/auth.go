package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/eroderunners/clubhouse/internal/apperror"
	"github.com/eroderunners/clubhouse/internal/auth"
	"github.com/eroderunners/clubhouse/internal/model"
	"github.com/eroderunners/clubhouse/internal/repository"
)

// Validation limits for member accounts.
const (
	MinPasswordLength = 8
	MaxUsernameLength = 30
)

// AuthService handles login, token issue and member administration.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users repository.UserRepository, passwords *auth.PasswordService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, passwords: passwords, tokens: tokens, logger: logger}
}

// Login verifies the member's credentials and issues a JWT.
//
// Wrong email and wrong password return the same "invalid credentials"
// error — telling an attacker which half was wrong helps them enumerate
// accounts. A deactivated member authenticates but is then refused.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, apperror.Unauthorized("invalid credentials")
	}
	if err := s.passwords.Verify(user.HashedPassword, password); err != nil {
		return "", nil, apperror.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return "", nil, apperror.Forbidden("account is deactivated")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("member logged in", slog.String("user_id", user.ID))
	return token, user, nil
}

// GetUser loads a member by id. Used by the /me endpoint and by handlers
// that need the caller's full record (admin checks, strava state).
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUserInput is the admin's new-member form.
type CreateUserInput struct {
	Email    string
	Username string
	FullName string
	Password string
	IsAdmin  bool
}

// CreateUser validates and creates a member account. Admin-only — the
// handler enforces that; the service just applies the business rules.
func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if in.Username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(in.Username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username", "username is too long")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:          in.Email,
		Username:       in.Username,
		FullName:       strings.TrimSpace(in.FullName),
		HashedPassword: hash,
		IsAdmin:        in.IsAdmin,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("member created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return user, nil
}

// ListUsers returns every member. Admin-only.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// DeleteUser removes a member and their activities. Admins can't delete
// themselves — that's how a club ends up with no admin.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apperror.Forbidden("you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}
	s.logger.Info("member deleted", slog.String("user_id", targetID), slog.String("by", actorID))
	return nil
}

// EnsureAdmin creates the default admin account if no account with that
// email exists yet. Called once at startup so a fresh deployment is usable.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, username, password string) error {
	if _, err := s.users.GetByEmail(ctx, strings.ToLower(email)); err == nil {
		return nil // already there
	}

	_, err := s.CreateUser(ctx, CreateUserInput{
		Email:    email,
		Username: username,
		FullName: "Administrator",
		Password: password,
		IsAdmin:  true,
	})
	return err
}
