package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/logger"
	"github.com/utafrali/natours/pkg/validator"
)

// Response is the JSON envelope every endpoint writes.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ListResponse is the envelope for Query Builder backed listings.
type ListResponse[T any] struct {
	Data    []T `json:"data"`
	Results int `json:"results"`
	Page    int `json:"page"`
	Limit   int `json:"limit"`
}

// NewListResponse never returns a null data array.
func NewListResponse[T any](data []T, page, limit int) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Results: len(data), Page: page, Limit: limit}
}

// WriteJSON writes v with the given status. Encoding errors are dropped since
// the header has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError renders err. Operational AppErrors are shown verbatim, anything
// else becomes a generic 500 and is logged with the request-scoped logger when
// one is present in the context.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.RequestIDFromContext(r.Context())

	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code: "VALIDATION_ERROR", Message: ve.Error(), Fields: ve.Fields(), RequestID: requestID,
		}})
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = fromSentinel(err)
	}

	if !appErr.IsOperational() {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
		Code: appErr.Code, Message: appErr.Message, RequestID: requestID,
	}})
}

// fromSentinel maps bare sentinel errors to a renderable AppError.
func fromSentinel(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return &apperrors.AppError{Code: "NOT_FOUND", Message: "resource not found", Status: http.StatusNotFound, Err: err}
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return &apperrors.AppError{Code: "ALREADY_EXISTS", Message: "resource already exists", Status: http.StatusConflict, Err: err}
	case errors.Is(err, apperrors.ErrInvalidInput):
		return &apperrors.AppError{Code: "INVALID_INPUT", Message: err.Error(), Status: http.StatusBadRequest, Err: err}
	default:
		return apperrors.Internal(err)
	}
}

// WriteValidationError renders a request decoding or validation failure as 400.
func WriteValidationError(w http.ResponseWriter, err error) {
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code: "VALIDATION_ERROR", Message: ve.Error(), Fields: ve.Fields(),
		}})
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}})
}

// ParseID checks that param is a UUID. On failure it writes a 400 and returns false.
func ParseID(w http.ResponseWriter, param string) (string, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code: "INVALID_PARAMETER", Message: "invalid id: " + param,
		}})
		return "", false
	}
	return id.String(), true
}
