package repository

import (
	"context"
	"time"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
)

// TourRepository defines the interface for tour persistence operations.
// Every read applies the visibility scope, so secret tours are never returned.
type TourRepository interface {
	// List runs the Query Builder over visible tours.
	List(ctx context.Context, params query.Params) (*query.Result, error)

	// GetByID retrieves a visible tour by id.
	GetByID(ctx context.Context, id string) (*domain.Tour, error)

	// Create inserts a new tour. Rating fields take their defaults.
	Create(ctx context.Context, tour *domain.Tour) error

	// Update writes every client-settable field, guarded by tour.Version.
	Update(ctx context.Context, tour *domain.Tour) error

	// Delete removes a tour and, through the foreign keys, its reviews and bookings.
	Delete(ctx context.Context, id string) error

	// Stats groups tours rated at least minRating by difficulty.
	Stats(ctx context.Context, minRating float64) ([]domain.TourStats, error)

	// MonthlyPlan counts tour starts per month of year.
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error)

	// Within returns tours starting inside radius radians of lat, lng.
	Within(ctx context.Context, lat, lng, radius float64) ([]domain.Tour, error)

	// Distances returns every tour's distance from lat, lng. multiplier
	// converts meters to the caller's unit.
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error)

	// BookedBy returns the tours userID holds a booking for.
	BookedBy(ctx context.Context, userID string) ([]domain.Tour, error)

	// SetRatings overwrites the denormalized rating aggregate.
	SetRatings(ctx context.Context, tourID string, stats domain.RatingStats) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// List runs the Query Builder over reviews, scoped to tourID when non-empty.
	List(ctx context.Context, tourID string, params query.Params) (*query.Result, error)

	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ListByTour returns every review of a tour, newest first.
	ListByTour(ctx context.Context, tourID string) ([]domain.Review, error)

	// Create inserts a review. A second review for the same tour and user
	// fails with apperrors.ErrAlreadyExists.
	Create(ctx context.Context, review *domain.Review) error

	Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error)

	Delete(ctx context.Context, id string) error

	// ResolveRef returns the tour and author of a review without loading it.
	ResolveRef(ctx context.Context, id string) (*domain.ReviewRef, error)

	// ReviewStats counts and averages the ratings of a tour's reviews.
	ReviewStats(ctx context.Context, tourID string) (count int, average float64, err error)
}

// BookingScope restricts a booking listing. Empty fields are unrestricted.
type BookingScope struct {
	TourID string
	UserID string
}

// BookingRepository defines the interface for booking persistence operations.
type BookingRepository interface {
	List(ctx context.Context, scope BookingScope, params query.Params) (*query.Result, error)

	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// Create inserts a booking. A second booking for the same tour and user
	// fails with apperrors.ErrAlreadyExists.
	Create(ctx context.Context, booking *domain.Booking) error

	Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error)

	Delete(ctx context.Context, id string) error
}

// UserRepository defines the interface for user persistence operations.
// Lookups only return active users.
type UserRepository interface {
	// List runs the Query Builder over active users. Credential columns are
	// not part of the schema.
	List(ctx context.Context, params query.Params) (*query.Result, error)

	GetByID(ctx context.Context, id string) (*domain.User, error)

	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByResetToken finds the user holding an unexpired reset token hash.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	Create(ctx context.Context, user *domain.User) error

	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)

	// UpdatePassword stores a new hash and clears any reset token.
	UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error

	// SetResetToken stores or, with nil arguments, clears a reset token.
	SetResetToken(ctx context.Context, id string, tokenHash *string, expires *time.Time) error

	// Deactivate soft-deletes a user.
	Deactivate(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
}
