package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/service"
	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/httputil"
	"github.com/utafrali/natours/pkg/middleware"
)

// logoutCookieTTL is how long the placeholder cookie set on logout lives.
const logoutCookieTTL = 10 * time.Second

// CookieConfig controls the jwt cookie issued on login.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// AuthHandler handles signup, login and the password flows.
type AuthHandler struct {
	service *service.AuthService
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		cookie:  cookie,
		logger:  logger,
	}
}

// UserHandler handles profile and user administration endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for registering.
type SignupRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// LoginRequest is the JSON request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the JSON request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for setting a new password.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordRequest is the JSON request body for changing the password
// of the logged in user.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdateMeRequest is the JSON request body for editing the own profile.
// The password fields are accepted only so they can be refused explicitly.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// UpdateUserRequest is the JSON request body for the admin user update.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role" validate:"omitempty,oneof=user guide lead-guide admin"`
	Photo *string `json:"photo" validate:"omitempty,min=1"`
}

// AuthResponse carries the issued token alongside the user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// --- Auth handlers ---

// Signup handles POST /api/v1/users/signup
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/users/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Signup(r.Context(), &service.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendToken(w, r, http.StatusCreated, res)
}

// Login handles POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendToken(w, r, http.StatusOK, res)
}

// Logout handles GET /api/v1/users/logout by overwriting the jwt cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(logoutCookieTTL),
		MaxAge:   int(logoutCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "success"}})
}

// ForgotPassword handles POST /api/v1/users/forgotPassword
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "token sent to email"})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendToken(w, r, http.StatusOK, res)
}

// UpdatePassword handles PATCH /api/v1/users/updateMyPassword
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.UpdatePassword(r.Context(), middleware.UserIDFromContext(r.Context()),
		req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendToken(w, r, http.StatusOK, res)
}

// sendToken sets the jwt cookie and writes the token with the user.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.MaxAge),
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteData(w, status, AuthResponse{Token: res.Token, User: res.User})
}

// --- User handlers ---

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/users/updateMe
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		httputil.WriteError(w, r,
			apperrors.InvalidInput("this route is not for password updates. please use /updateMyPassword"), h.logger)
		return
	}

	user, err := h.service.UpdateMe(r.Context(), middleware.UserIDFromContext(r.Context()),
		domain.UserPatch{Name: req.Name, Email: req.Email})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// DeleteMe handles DELETE /api/v1/users/deleteMe
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListUsers(r.Context(), listParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeList(w, res)
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// UpdateUser handles PATCH /api/v1/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, domain.UserPatch{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
		Photo: req.Photo,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
