package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/utafrali/natours/internal/payment"
	"github.com/utafrali/natours/internal/repository"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// DefaultCurrency is charged when no currency is configured.
const DefaultCurrency = "usd"

// CheckoutService opens gateway checkout sessions and turns completed
// payments into bookings.
type CheckoutService struct {
	gateway   payment.Gateway
	verifier  *payment.WebhookVerifier
	tours     repository.TourRepository
	users     repository.UserRepository
	bookings  *BookingService
	publicURL string
	currency  string
	logger    *slog.Logger
}

// CheckoutConfig holds the settings of a CheckoutService.
type CheckoutConfig struct {
	PublicURL string
	Currency  string
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	gateway payment.Gateway,
	verifier *payment.WebhookVerifier,
	tours repository.TourRepository,
	users repository.UserRepository,
	bookings *BookingService,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	return &CheckoutService{
		gateway:   gateway,
		verifier:  verifier,
		tours:     tours,
		users:     users,
		bookings:  bookings,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		currency:  currency,
		logger:    logger,
	}
}

// CreateSession opens a checkout page for tourID paid by the user with email.
func (s *CheckoutService) CreateSession(ctx context.Context, tourID, email string) (*payment.CheckoutSession, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, fmt.Errorf("get checkout tour: %w", err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{
		ClientReferenceID: tour.ID,
		CustomerEmail:     email,
		ProductName:       tour.Name + " Tour",
		Description:       tour.Summary,
		ImageURL:          s.publicURL + "/img/tours/" + tour.ImageCover,
		AmountCents:       int64(math.Round(tour.Price * 100)),
		Currency:          s.currency,
		SuccessURL:        s.publicURL + "/my-tours",
		CancelURL:         s.publicURL + "/tour/" + tour.Slug,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("tour_id", tour.ID),
		slog.String("gateway", s.gateway.Name()),
	)
	return session, nil
}

// HandleWebhook verifies a gateway notification and books the tour of a
// completed checkout. Redelivered notifications succeed without booking twice.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		return apperrors.InvalidInput("Webhook error: " + err.Error())
	}

	if evt.Type != payment.EventCheckoutCompleted {
		s.logger.DebugContext(ctx, "ignoring webhook event",
			slog.String("event_id", evt.ID),
			slog.String("type", evt.Type),
		)
		return nil
	}

	session := evt.Data.Object
	if session.ClientReferenceID == "" || session.CustomerEmail == "" {
		return apperrors.InvalidInput("Webhook error: checkout session without tour or customer")
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(session.CustomerEmail))
	if err != nil {
		return fmt.Errorf("get checkout customer: %w", err)
	}

	price := float64(session.AmountTotal) / 100
	paid := true
	_, err = s.bookings.CreateBooking(ctx, &CreateBookingInput{
		TourID: session.ClientReferenceID,
		UserID: user.ID,
		Price:  &price,
		Paid:   &paid,
	})
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		s.logger.InfoContext(ctx, "checkout already booked",
			slog.String("session_id", session.ID),
			slog.String("tour_id", session.ClientReferenceID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("book completed checkout: %w", err)
	}
	return nil
}
