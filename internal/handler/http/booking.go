package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/payment"
	"github.com/utafrali/natours/internal/repository"
	"github.com/utafrali/natours/internal/service"
	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/httputil"
	"github.com/utafrali/natours/pkg/middleware"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// BookingHandler handles HTTP requests for bookings, checkout and the
// payment webhook.
type BookingHandler struct {
	service  *service.BookingService
	checkout *service.CheckoutService
	tours    *service.TourService
	logger   *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, checkout *service.CheckoutService, tours *service.TourService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service:  svc,
		checkout: checkout,
		tours:    tours,
		logger:   logger,
	}
}

// --- Request DTOs ---

// CreateBookingRequest is the JSON request body for creating a booking
// manually. Price defaults to the tour price.
type CreateBookingRequest struct {
	Tour  string   `json:"tour" validate:"omitempty,uuid"`
	User  string   `json:"user" validate:"required,uuid"`
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid"`
}

// UpdateBookingRequest is the JSON request body for updating a booking.
type UpdateBookingRequest struct {
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid"`
}

// CheckoutSessionResponse is returned by the checkout-session endpoint.
type CheckoutSessionResponse struct {
	Session *payment.CheckoutSession `json:"session"`
}

// --- Handlers ---

// GetCheckoutSession handles GET /api/v1/bookings/checkout-session/{tourId}
// @Summary Open a checkout session for a tour
// @Tags bookings
// @Produce json
// @Param tourId path string true "Tour ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/bookings/checkout-session/{tourId} [get]
func (h *BookingHandler) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathID(w, r, "tourId")
	if !ok {
		return
	}

	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized("you are not logged in, please log in to get access"), h.logger)
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), tourID, p.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, CheckoutSessionResponse{Session: session})
}

// WebhookCheckout handles POST /webhook-checkout. The body is read raw since
// the signature covers the exact bytes sent by the gateway.
func (h *BookingHandler) WebhookCheckout(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("Webhook error: "+err.Error()), h.logger)
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), payload, r.Header.Get(payment.SignatureHeader)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// ListBookings handles GET /api/v1/bookings and GET /api/v1/tours/{tourId}/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	tourID, ok := nestedTourID(w, r)
	if !ok {
		return
	}

	res, err := h.service.ListBookings(r.Context(), repository.BookingScope{TourID: tourID}, listParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeList(w, res)
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, booking)
}

// CreateBooking handles POST /api/v1/bookings and POST /api/v1/tours/{tourId}/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tourID, ok := nestedTourID(w, r)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if tourID == "" {
		tourID = req.Tour
	}

	booking, err := h.service.CreateBooking(r.Context(), &service.CreateBookingInput{
		TourID: tourID,
		UserID: req.User,
		Price:  req.Price,
		Paid:   req.Paid,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, booking)
}

// UpdateBooking handles PATCH /api/v1/bookings/{id}
func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if !decode(w, r, &req) {
		return
	}

	booking, err := h.service.UpdateBooking(r.Context(), id, domain.BookingPatch{Price: req.Price, Paid: req.Paid})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, booking)
}

// DeleteBooking handles DELETE /api/v1/bookings/{id}
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MyTours handles GET /api/v1/users/me/tours
func (h *BookingHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.tours.BookedTours(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(tours, 1, len(tours)))
}
