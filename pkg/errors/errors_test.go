package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrForbidden, ErrInternal, ErrConflict, ErrGone, ErrServiceUnavail,
		ErrPaymentFailed, ErrTooManyRequests,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "boom", Err: fmt.Errorf("pool closed")}
	assert.Equal(t, "INTERNAL_ERROR: boom: pool closed", withCause.Error())

	plain := &AppError{Code: "NOT_FOUND", Message: "no tour"}
	assert.Equal(t, "NOT_FOUND: no tour", plain.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("tour", "t-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("review", "tour and user", "t-1/u-1"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("log in"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("no"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("state"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"gone", Gone("expired"), "GONE", http.StatusGone, ErrGone},
		{"too many", TooManyRequests("slow down"), "TOO_MANY_REQUESTS", http.StatusTooManyRequests, ErrTooManyRequests},
		{"unavailable", ServiceUnavailable("gateway down"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"payment", PaymentFailed("declined"), "PAYMENT_FAILED", http.StatusUnprocessableEntity, ErrPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("tour", "abc")
	assert.Equal(t, "no tour found with id abc", err.Message)
}

func TestInternal_HidesCause(t *testing.T) {
	cause := fmt.Errorf("password authentication failed for user natours")
	err := Internal(cause)
	assert.Equal(t, "something went wrong", err.Message)
	assert.False(t, err.IsOperational())
	assert.ErrorIs(t, err, cause)
}

func TestIsOperational(t *testing.T) {
	assert.True(t, InvalidInput("x").IsOperational())
	assert.True(t, NotFound("tour", "1").IsOperational())
	assert.False(t, ServiceUnavailable("x").IsOperational())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", Forbidden("x"), http.StatusForbidden},
		{"wrapped app error", fmt.Errorf("get tour: %w", NotFound("tour", "1")), http.StatusNotFound},
		{"sentinel not found", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{"sentinel conflict", ErrConflict, http.StatusConflict},
		{"sentinel gone", ErrGone, http.StatusGone},
		{"sentinel too many", ErrTooManyRequests, http.StatusTooManyRequests},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
