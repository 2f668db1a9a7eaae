package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// UserService implements profile and user administration operations.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// ListUsers returns a page of active users.
func (s *UserService) ListUsers(ctx context.Context, params query.Params) (*query.Result, error) {
	res, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return res, nil
}

// GetUser retrieves an active user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// UpdateMe changes the caller's own name, email or photo. Role changes are
// dropped so users cannot promote themselves.
func (s *UserService) UpdateMe(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	patch.Role = nil
	return s.update(ctx, userID, patch)
}

// UpdateUser lets an admin change any profile field, including the role.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if patch.Role != nil && !domain.IsValidRole(*patch.Role) {
		return nil, apperrors.InvalidInput("role must be one of: " + strings.Join(domain.ValidRoles(), ", "))
	}
	return s.update(ctx, id, patch)
}

// DeleteMe deactivates the caller's account. The row is kept.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	s.logger.InfoContext(ctx, "user deactivated", slog.String("user_id", userID))
	return nil
}

// DeleteUser removes a user for good.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id))
	return nil
}

func (s *UserService) update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("please tell us your name")
		}
		patch.Name = &name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return nil, apperrors.InvalidInput("please provide your email")
		}
		patch.Email = &email
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user updated", slog.String("user_id", id))
	return user, nil
}
