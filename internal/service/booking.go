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
)

// Notifier sends the transactional emails of the API.
type Notifier interface {
	SendWelcome(ctx context.Context, u *domain.User, url string) error
	SendPasswordReset(ctx context.Context, u *domain.User, url string) error
	SendBookingConfirmation(ctx context.Context, u *domain.User, tourName string, price float64, url string) error
}

// BookingService implements the business logic for booking operations.
type BookingService struct {
	repo      repository.BookingRepository
	tours     repository.TourRepository
	users     repository.UserRepository
	producer  *event.Producer
	notifier  Notifier
	publicURL string
	logger    *slog.Logger
}

// NewBookingService creates a new booking service. publicURL is the base of
// links placed in confirmation emails.
func NewBookingService(
	repo repository.BookingRepository,
	tours repository.TourRepository,
	users repository.UserRepository,
	producer *event.Producer,
	notifier Notifier,
	publicURL string,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		tours:     tours,
		users:     users,
		producer:  producer,
		notifier:  notifier,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// CreateBookingInput holds the parameters for creating a booking. A nil
// Price takes the tour's price, a nil Paid defaults to true.
type CreateBookingInput struct {
	TourID string
	UserID string
	Price  *float64
	Paid   *bool
}

// ListBookings returns a page of bookings restricted by scope.
func (s *BookingService) ListBookings(ctx context.Context, scope repository.BookingScope, params query.Params) (*query.Result, error) {
	res, err := s.repo.List(ctx, scope, params)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return res, nil
}

// GetBooking retrieves a booking by its ID.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return booking, nil
}

// CreateBooking books a tour for a user and mails a confirmation. A second
// booking of the same tour by the same user fails with ErrAlreadyExists.
func (s *BookingService) CreateBooking(ctx context.Context, input *CreateBookingInput) (*domain.Booking, error) {
	if input.TourID == "" || input.UserID == "" {
		return nil, apperrors.InvalidInput("booking must belong to a tour and a user")
	}

	tour, err := s.tours.GetByID(ctx, input.TourID)
	if err != nil {
		return nil, fmt.Errorf("get booked tour: %w", err)
	}
	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("get booking user: %w", err)
	}

	price := tour.Price
	if input.Price != nil {
		price = *input.Price
	}
	if price <= 0 {
		return nil, apperrors.InvalidInput("booking must have a price")
	}
	paid := true
	if input.Paid != nil {
		paid = *input.Paid
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:        uuid.New().String(),
		TourID:    tour.ID,
		UserID:    user.ID,
		Price:     price,
		Paid:      paid,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.producer.PublishBookingCreated(ctx, booking); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.created event",
			slog.String("booking_id", booking.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.notifier.SendBookingConfirmation(ctx, user, tour.Name, booking.Price, s.publicURL+"/my-tours"); err != nil {
		// The booking stands even if the confirmation is lost.
		s.logger.ErrorContext(ctx, "failed to send booking confirmation",
			slog.String("booking_id", booking.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", booking.ID),
		slog.String("tour_id", booking.TourID),
		slog.String("user_id", booking.UserID),
	)
	return booking, nil
}

// UpdateBooking applies the non-nil fields of patch.
func (s *BookingService) UpdateBooking(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error) {
	if patch.Price != nil && *patch.Price <= 0 {
		return nil, apperrors.InvalidInput("booking must have a price")
	}

	booking, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	s.logger.InfoContext(ctx, "booking updated", slog.String("booking_id", id))
	return booking, nil
}

// DeleteBooking removes a booking.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	s.logger.InfoContext(ctx, "booking deleted", slog.String("booking_id", id))
	return nil
}
