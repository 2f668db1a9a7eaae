package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/pkg/httputil"
	"github.com/utafrali/natours/pkg/middleware"
)

// ReviewHandler handles HTTP requests for review endpoints, both top-level
// and nested under /tours/{tourId}/reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for creating a review. The
// tour may be omitted on the nested route; the author is always the caller.
type CreateReviewRequest struct {
	Review string  `json:"review" validate:"required"`
	Rating float64 `json:"rating" validate:"required,gte=1,lte=5"`
	Tour   string  `json:"tour" validate:"omitempty,uuid"`
}

// UpdateReviewRequest is the JSON request body for updating a review.
type UpdateReviewRequest struct {
	Review *string  `json:"review" validate:"omitempty,min=1"`
	Rating *float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

// --- Handlers ---

// ListReviews handles GET /api/v1/reviews and GET /api/v1/tours/{tourId}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	tourID, ok := nestedTourID(w, r)
	if !ok {
		return
	}

	res, err := h.service.ListReviews(r.Context(), tourID, listParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeList(w, res)
}

// GetReview handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	review, err := h.service.GetReview(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// CreateReview handles POST /api/v1/reviews and POST /api/v1/tours/{tourId}/reviews
// @Summary Review a tour
// @Description The tour rating is recomputed in the background once the review is stored.
// @Tags reviews
// @Accept json
// @Produce json
// @Param request body CreateReviewRequest true "Review to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/tours/{tourId}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	tourID, ok := nestedTourID(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if !decode(w, r, &req) {
		return
	}
	if tourID == "" {
		tourID = req.Tour
	}

	review, err := h.service.CreateReview(r.Context(), &service.CreateReviewInput{
		TourID: tourID,
		UserID: middleware.UserIDFromContext(r.Context()),
		Review: req.Review,
		Rating: req.Rating,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// UpdateReview handles PATCH /api/v1/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateReviewRequest
	if !decode(w, r, &req) {
		return
	}

	review, err := h.service.UpdateReview(r.Context(), actor(r), id, domain.ReviewPatch{
		Review: req.Review,
		Rating: req.Rating,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteReview(r.Context(), actor(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nestedTourID returns the {tourId} path parameter, or "" on top-level routes.
func nestedTourID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if chi.URLParam(r, "tourId") == "" {
		return "", true
	}
	return pathID(w, r, "tourId")
}
