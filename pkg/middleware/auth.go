package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/httputil"
	"github.com/utafrali/natours/pkg/logger"
)

// TokenCookie is the cookie that carries the access token for browser clients.
const TokenCookie = "jwt"

type principalKey struct{}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// Authenticator resolves a raw access token to a principal. Implementations
// return an *apperrors.AppError describing why a token is rejected.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the jwt cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

// Authenticate rejects requests without a valid token and stores the
// resolved principal in the request context.
func Authenticate(authn Authenticator, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("you are not logged in, please log in to get access"), l)
				return
			}

			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteError(w, r, err, l)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = logger.WithUserID(ctx, p.UserID)
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, l))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through only principals holding one of roles.
// It must be mounted after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				httputil.WriteError(w, r, apperrors.Forbidden("you do not have permission to perform this action"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserIDFromContext returns the caller's user id or "".
func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// RoleFromContext returns the caller's role or "".
func RoleFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Role
	}
	return ""
}
