package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/pkg/httputil"
)

// TourHandler handles HTTP requests for tour endpoints.
type TourHandler struct {
	service *service.TourService
	logger  *slog.Logger
}

// NewTourHandler creates a new tour HTTP handler.
func NewTourHandler(svc *service.TourService, logger *slog.Logger) *TourHandler {
	return &TourHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateTourRequest is the JSON request body for creating a tour. Rating
// fields are derived from reviews and rejected as unknown fields.
type CreateTourRequest struct {
	Name          string            `json:"name" validate:"required,min=10,max=40"`
	Duration      int               `json:"duration" validate:"required,gt=0"`
	MaxGroupSize  int               `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty    string            `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	Price         float64           `json:"price" validate:"required,gt=0"`
	PriceDiscount *float64          `json:"priceDiscount" validate:"omitempty,gte=0,ltfield=Price"`
	Summary       string            `json:"summary" validate:"required"`
	Description   string            `json:"description"`
	ImageCover    string            `json:"imageCover" validate:"required"`
	Images        []string          `json:"images"`
	StartDates    []time.Time       `json:"startDates"`
	SecretTour    bool              `json:"secretTour"`
	StartLocation *domain.GeoPoint  `json:"startLocation"`
	Locations     []domain.GeoPoint `json:"locations"`
	Guides        []string          `json:"guides" validate:"omitempty,dive,uuid"`
}

// UpdateTourRequest is the JSON request body for updating a tour.
type UpdateTourRequest struct {
	Name          *string           `json:"name" validate:"omitempty,min=10,max=40"`
	Duration      *int              `json:"duration" validate:"omitempty,gt=0"`
	MaxGroupSize  *int              `json:"maxGroupSize" validate:"omitempty,gt=0"`
	Difficulty    *string           `json:"difficulty" validate:"omitempty,oneof=easy medium difficult"`
	Price         *float64          `json:"price" validate:"omitempty,gt=0"`
	PriceDiscount *float64          `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary       *string           `json:"summary" validate:"omitempty,min=1"`
	Description   *string           `json:"description"`
	ImageCover    *string           `json:"imageCover" validate:"omitempty,min=1"`
	Images        []string          `json:"images"`
	StartDates    []time.Time       `json:"startDates"`
	SecretTour    *bool             `json:"secretTour"`
	StartLocation *domain.GeoPoint  `json:"startLocation"`
	Locations     []domain.GeoPoint `json:"locations"`
	Guides        []string          `json:"guides" validate:"omitempty,dive,uuid"`
}

// --- Handlers ---

// ListTours handles GET /api/v1/tours
// @Summary List tours
// @Description Filters with field=value or field[gte|gt|lte|lt]=value, sorts with
// @Description sort=-price,name, projects with fields=name,price and pages with page/limit.
// @Tags tours
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/tours [get]
func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListTours(r.Context(), listParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeList(w, res)
}

// TopCheapTours handles GET /api/v1/tours/top-5-cheap
func (h *TourHandler) TopCheapTours(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.TopCheapTours(r.Context(), listParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeList(w, res)
}

// GetTour handles GET /api/v1/tours/{id}
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	tour, err := h.service.GetTour(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tour)
}

// CreateTour handles POST /api/v1/tours
// @Summary Create a tour
// @Tags tours
// @Accept json
// @Produce json
// @Param request body CreateTourRequest true "Tour to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/tours [post]
func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req CreateTourRequest
	if !decode(w, r, &req) {
		return
	}

	tour, err := h.service.CreateTour(r.Context(), &service.CreateTourInput{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
		Guides:        req.Guides,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, tour)
}

// UpdateTour handles PATCH /api/v1/tours/{id}
func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTourRequest
	if !decode(w, r, &req) {
		return
	}

	tour, err := h.service.UpdateTour(r.Context(), id, &service.UpdateTourInput{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
		Guides:        req.Guides,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tour)
}

// DeleteTour handles DELETE /api/v1/tours/{id}
func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTour(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TourStats handles GET /api/v1/tours/tour-stats
func (h *TourHandler) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.TourStats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan/{year}
func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "year must be a number"},
		})
		return
	}

	plan, err := h.service.MonthlyPlan(r.Context(), year)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, plan)
}

// ToursWithin handles GET /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}
// @Summary Tours starting within a distance of a point
// @Tags tours
// @Produce json
// @Param distance path number true "Radius"
// @Param latlng path string true "Center as lat,lng"
// @Param unit path string true "mi or km"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit} [get]
func (h *TourHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "distance must be a number"},
		})
		return
	}

	tours, err := h.service.ToursWithin(r.Context(), distance, chi.URLParam(r, "latlng"), chi.URLParam(r, "unit"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(tours, 1, len(tours)))
}

// Distances handles GET /api/v1/tours/distances/{latlng}/unit/{unit}
func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) {
	distances, err := h.service.Distances(r.Context(), chi.URLParam(r, "latlng"), chi.URLParam(r, "unit"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, distances)
}
