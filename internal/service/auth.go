package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/natours/internal/auth"
	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/repository"
	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/middleware"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = 10 * time.Minute

// minPasswordLength is the shortest accepted password.
const minPasswordLength = 8

// AuthService implements signup, login, token authentication and the
// password flows.
type AuthService struct {
	users     repository.UserRepository
	jwt       *auth.JWTManager
	notifier  Notifier
	publicURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users repository.UserRepository, jwt *auth.JWTManager, notifier Notifier, publicURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwt:       jwt,
		notifier:  notifier,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// SignupInput holds the parameters for registering a user.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthResult is a user together with a freshly issued access token.
type AuthResult struct {
	User  *domain.User
	Token string
}

// Signup registers a user with the user role and sends a welcome email.
func (s *AuthService) Signup(ctx context.Context, input *SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("please tell us your name")
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("please provide your email")
	}
	if err := checkNewPassword(input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Photo:        domain.DefaultPhoto,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.notifier.SendWelcome(ctx, user, s.publicURL+"/me"); err != nil {
		s.logger.ErrorContext(ctx, "failed to send welcome email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("please provide email and password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("incorrect email or password")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.Unauthorized("incorrect email or password")
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Authenticate resolves an access token to the principal of a still active
// user. Tokens issued before the last password change are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*middleware.Principal, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("your token has expired, please log in again")
		}
		return nil, apperrors.Unauthorized("invalid token, please log in again")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("the user belonging to this token no longer exists")
		}
		return nil, fmt.Errorf("get token user: %w", err)
	}
	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperrors.Unauthorized("user recently changed password, please log in again")
	}

	return &middleware.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	}, nil
}

// ForgotPassword stores a reset token for the user and mails it. If the mail
// cannot be sent the token is withdrawn.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &apperrors.AppError{
				Code:    "NOT_FOUND",
				Message: "there is no user with that email address",
				Status:  http.StatusNotFound,
				Err:     apperrors.ErrNotFound,
			}
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	expires := s.now().UTC().Add(ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, &hash, &expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	url := s.publicURL + "/api/v1/users/resetPassword/" + token
	if err := s.notifier.SendPasswordReset(ctx, user, url); err != nil {
		if clearErr := s.users.SetResetToken(ctx, user.ID, nil, nil); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear reset token",
				slog.String("user_id", user.ID),
				slog.String("error", clearErr.Error()),
			)
		}
		return apperrors.Internal(fmt.Errorf("send reset email: %w", err))
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*AuthResult, error) {
	if err := checkNewPassword(password, confirm); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user, err := s.users.GetByResetToken(ctx, auth.HashResetToken(token), now)
	if err != nil {
		return nil, fmt.Errorf("get user by reset token: %w", err)
	}

	if err := s.setPassword(ctx, user, password, now); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return s.issue(user)
}

// UpdatePassword changes the password of a logged in user who knows the
// current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, password, confirm string) (*AuthResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return nil, apperrors.Unauthorized("your current password is wrong")
	}
	if err := checkNewPassword(password, confirm); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, user, password, s.now().UTC()); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "password updated", slog.String("user_id", user.ID))
	return s.issue(user)
}

// setPassword stores a new hash. The change is dated one second back so the
// token issued right after it stays valid.
func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string, now time.Time) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	changedAt := now.Add(-time.Second)
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func checkNewPassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	if password != confirm {
		return apperrors.InvalidInput("passwords are not the same")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
