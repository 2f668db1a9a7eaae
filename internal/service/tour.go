package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/event"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/slug"
)

// Query presets of the top-5-cheap alias.
const (
	topToursLimit  = "5"
	topToursSort   = "-ratingsAverage,price"
	topToursFields = "name,price,ratingsAverage,summary,difficulty"
)

// StatsMinRating is the rating threshold of the tour statistics report.
const StatsMinRating = 4.5

// TourService implements the business logic for tour operations.
type TourService struct {
	repo     repository.TourRepository
	reviews  repository.ReviewRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewTourService creates a new tour service.
func NewTourService(repo repository.TourRepository, reviews repository.ReviewRepository, producer *event.Producer, logger *slog.Logger) *TourService {
	return &TourService{
		repo:     repo,
		reviews:  reviews,
		producer: producer,
		logger:   logger,
	}
}

// CreateTourInput holds the parameters for creating a tour.
type CreateTourInput struct {
	Name          string
	Duration      int
	MaxGroupSize  int
	Difficulty    string
	Price         float64
	PriceDiscount *float64
	Summary       string
	Description   string
	ImageCover    string
	Images        []string
	StartDates    []time.Time
	SecretTour    bool
	StartLocation *domain.GeoPoint
	Locations     []domain.GeoPoint
	Guides        []string
}

// UpdateTourInput holds the parameters for updating a tour. Nil means unchanged.
type UpdateTourInput struct {
	Name          *string
	Duration      *int
	MaxGroupSize  *int
	Difficulty    *string
	Price         *float64
	PriceDiscount *float64
	Summary       *string
	Description   *string
	ImageCover    *string
	Images        []string
	StartDates    []time.Time
	SecretTour    *bool
	StartLocation *domain.GeoPoint
	Locations     []domain.GeoPoint
	Guides        []string
}

// ListTours returns a page of visible tours shaped by params.
func (s *TourService) ListTours(ctx context.Context, params query.Params) (*query.Result, error) {
	res, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}
	return res, nil
}

// TopCheapTours lists the five best rated tours, cheapest first among equals.
// Preset keys override whatever the caller sent.
func (s *TourService) TopCheapTours(ctx context.Context, params query.Params) (*query.Result, error) {
	return s.ListTours(ctx, TopCheapParams(params))
}

// TopCheapParams applies the top-5-cheap presets to a copy of params.
func TopCheapParams(params query.Params) query.Params {
	p := params.Clone()
	p.Set(query.KeyLimit, topToursLimit)
	p.Set(query.KeySort, topToursSort)
	p.Set(query.KeyFields, topToursFields)
	return p
}

// GetTour retrieves a visible tour together with its reviews.
func (s *TourService) GetTour(ctx context.Context, id string) (*domain.Tour, error) {
	tour, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tour by id: %w", err)
	}

	reviews, err := s.reviews.ListByTour(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list reviews of tour: %w", err)
	}
	tour.Reviews = reviews
	return tour, nil
}

// CreateTour creates a new tour with default rating fields.
func (s *TourService) CreateTour(ctx context.Context, input *CreateTourInput) (*domain.Tour, error) {
	now := time.Now().UTC()
	tour := &domain.Tour{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(input.Name),
		Duration:        input.Duration,
		MaxGroupSize:    input.MaxGroupSize,
		Difficulty:      input.Difficulty,
		RatingsAverage:  domain.DefaultRatingsAverage,
		RatingsQuantity: domain.DefaultRatingsQuantity,
		Price:           input.Price,
		PriceDiscount:   input.PriceDiscount,
		Summary:         strings.TrimSpace(input.Summary),
		Description:     strings.TrimSpace(input.Description),
		ImageCover:      input.ImageCover,
		Images:          input.Images,
		StartDates:      input.StartDates,
		SecretTour:      input.SecretTour,
		StartLocation:   input.StartLocation,
		Locations:       input.Locations,
		Guides:          input.Guides,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	tour.Slug = slug.Generate(tour.Name)
	tour.DurationWeeks = tour.Weeks()

	if err := validateTour(tour); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, tour); err != nil {
		return nil, fmt.Errorf("create tour: %w", err)
	}

	if err := s.producer.PublishTourCreated(ctx, tour); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish tour.created event",
			slog.String("tour_id", tour.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "tour created",
		slog.String("tour_id", tour.ID),
		slog.String("slug", tour.Slug),
	)
	return tour, nil
}

// UpdateTour applies the non-nil fields of input. A concurrent update of the
// same tour fails with a conflict.
func (s *TourService) UpdateTour(ctx context.Context, id string, input *UpdateTourInput) (*domain.Tour, error) {
	tour, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tour for update: %w", err)
	}

	if input.Name != nil {
		tour.Name = strings.TrimSpace(*input.Name)
		tour.Slug = slug.Generate(tour.Name)
	}
	if input.Duration != nil {
		tour.Duration = *input.Duration
		tour.DurationWeeks = tour.Weeks()
	}
	if input.MaxGroupSize != nil {
		tour.MaxGroupSize = *input.MaxGroupSize
	}
	if input.Difficulty != nil {
		tour.Difficulty = *input.Difficulty
	}
	if input.Price != nil {
		tour.Price = *input.Price
	}
	if input.PriceDiscount != nil {
		tour.PriceDiscount = input.PriceDiscount
	}
	if input.Summary != nil {
		tour.Summary = strings.TrimSpace(*input.Summary)
	}
	if input.Description != nil {
		tour.Description = strings.TrimSpace(*input.Description)
	}
	if input.ImageCover != nil {
		tour.ImageCover = *input.ImageCover
	}
	if input.Images != nil {
		tour.Images = input.Images
	}
	if input.StartDates != nil {
		tour.StartDates = input.StartDates
	}
	if input.SecretTour != nil {
		tour.SecretTour = *input.SecretTour
	}
	if input.StartLocation != nil {
		tour.StartLocation = input.StartLocation
	}
	if input.Locations != nil {
		tour.Locations = input.Locations
	}
	if input.Guides != nil {
		tour.Guides = input.Guides
	}

	if err := validateTour(tour); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tour); err != nil {
		return nil, fmt.Errorf("update tour: %w", err)
	}

	if err := s.producer.PublishTourUpdated(ctx, tour); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish tour.updated event",
			slog.String("tour_id", tour.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "tour updated",
		slog.String("tour_id", tour.ID),
		slog.Int("version", tour.Version),
	)
	return tour, nil
}

// DeleteTour removes a tour together with its reviews and bookings.
func (s *TourService) DeleteTour(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete tour: %w", err)
	}

	if err := s.producer.PublishTourDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish tour.deleted event",
			slog.String("tour_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "tour deleted", slog.String("tour_id", id))
	return nil
}

// TourStats reports per-difficulty figures over well rated tours.
func (s *TourService) TourStats(ctx context.Context) ([]domain.TourStats, error) {
	stats, err := s.repo.Stats(ctx, StatsMinRating)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	return stats, nil
}

// MonthlyPlan reports how many tours start in each month of year.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	if year < 1970 || year > 9999 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid year %d", year))
	}
	plan, err := s.repo.MonthlyPlan(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	return plan, nil
}

// ToursWithin returns the tours starting within distance of latlng.
func (s *TourService) ToursWithin(ctx context.Context, distance float64, latlng, unit string) ([]domain.Tour, error) {
	lat, lng, err := parseCenter(latlng, unit)
	if err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, apperrors.InvalidInput("distance must be a positive number")
	}

	tours, err := s.repo.Within(ctx, lat, lng, domain.RadiusRadians(distance, unit))
	if err != nil {
		return nil, fmt.Errorf("tours within: %w", err)
	}
	return tours, nil
}

// Distances returns the distance of every tour from latlng, nearest first.
func (s *TourService) Distances(ctx context.Context, latlng, unit string) ([]domain.TourDistance, error) {
	lat, lng, err := parseCenter(latlng, unit)
	if err != nil {
		return nil, err
	}

	distances, err := s.repo.Distances(ctx, lat, lng, domain.DistanceMultiplier(unit))
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	return distances, nil
}

// BookedTours returns the tours a user holds a booking for.
func (s *TourService) BookedTours(ctx context.Context, userID string) ([]domain.Tour, error) {
	tours, err := s.repo.BookedBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("booked tours: %w", err)
	}
	return tours, nil
}

func parseCenter(latlng, unit string) (lat, lng float64, err error) {
	if !domain.IsValidUnit(unit) {
		return 0, 0, apperrors.InvalidInput(fmt.Sprintf("unit must be %s or %s", domain.UnitMiles, domain.UnitKilometers))
	}
	lat, lng, err = domain.ParseLatLng(latlng)
	if err != nil {
		return 0, 0, apperrors.InvalidInput("please provide latitude and longitude in the format lat,lng")
	}
	return lat, lng, nil
}

func validateTour(t *domain.Tour) error {
	switch n := len([]rune(t.Name)); {
	case n < 10:
		return apperrors.InvalidInput("a tour name must have at least 10 characters")
	case n > 40:
		return apperrors.InvalidInput("a tour name must have at most 40 characters")
	}
	if t.Duration <= 0 {
		return apperrors.InvalidInput("a tour must have a duration")
	}
	if t.MaxGroupSize <= 0 {
		return apperrors.InvalidInput("a tour must have a group size")
	}
	if !domain.IsValidDifficulty(t.Difficulty) {
		return apperrors.InvalidInput("difficulty is either: easy, medium, difficult")
	}
	if t.Price <= 0 {
		return apperrors.InvalidInput("a tour must have a price")
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return apperrors.InvalidInput(fmt.Sprintf("discount price (%g) should be below regular price", *t.PriceDiscount))
	}
	if t.Summary == "" {
		return apperrors.InvalidInput("a tour must have a summary")
	}
	if t.ImageCover == "" {
		return apperrors.InvalidInput("a tour must have a cover image")
	}
	return nil
}
