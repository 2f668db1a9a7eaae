package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// BookingSchema exposes bookings with the booked tour's name and the buyer.
var BookingSchema = query.NewSchema("id", "-createdAt",
	query.Field{Name: "id", Column: "b.id", Kind: query.String},
	query.Field{Name: "tour", Column: "b.tour_id", Kind: query.String},
	query.Field{Name: "user", Column: "b.user_id", Kind: query.String},
	query.Field{Name: "price", Column: "b.price", Kind: query.Number},
	query.Field{Name: "paid", Column: "b.paid", Kind: query.Bool},
	query.Field{Name: "tourName", Column: "t.name", Kind: query.String},
	query.Field{Name: "userName", Column: "u.name", Kind: query.String},
	query.Field{Name: "userEmail", Column: "u.email", Kind: query.String},
	query.Field{Name: "createdAt", Column: "b.created_at", Kind: query.Time},
	query.Field{Name: "version", Column: "b.version", Kind: query.Integer, Internal: true},
)

const bookingColumns = `id, tour_id, user_id, price, paid, created_at, updated_at, version`

// BookingRepository implements repository.BookingRepository using PostgreSQL.
type BookingRepository struct {
	pool database.DBTX
	opts Options
}

// NewBookingRepository creates a new PostgreSQL-backed booking repository.
func NewBookingRepository(pool database.DBTX, opts Options) *BookingRepository {
	return &BookingRepository{pool: pool, opts: opts}
}

// List returns one page of bookings within scope.
func (r *BookingRepository) List(ctx context.Context, scope repository.BookingScope, params query.Params) (*query.Result, error) {
	base := dialect.From(goqu.T("bookings").As("b")).
		LeftJoin(goqu.T("tours").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("b.tour_id")))).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("b.user_id"))))
	if scope.TourID != "" {
		base = base.Where(goqu.I("b.tour_id").Eq(scope.TourID))
	}
	if scope.UserID != "" {
		base = base.Where(goqu.I("b.user_id").Eq(scope.UserID))
	}
	b := query.New(base, BookingSchema, params, query.WithMaxLimit(r.opts.MaxLimit))
	return runQuery(ctx, r.pool, "ListBookings", b)
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("booking", id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// Create inserts a new booking into the database.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	q := `
		INSERT INTO bookings (id, tour_id, user_id, price, paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, q,
		b.ID,
		b.TourID,
		b.UserID,
		b.Price,
		b.Paid,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("booking", "tour", b.TourID)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and returns the updated booking.
func (r *BookingRepository) Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error) {
	q := `
		UPDATE bookings
		SET price = COALESCE($2, price), paid = COALESCE($3, paid),
		    updated_at = $4, version = version + 1
		WHERE id = $1
		RETURNING ` + bookingColumns

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id, patch.Price, patch.Paid, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("booking", id)
		}
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return b, nil
}

// Delete removes a booking from the database by its ID.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("booking", id)
	}
	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID,
		&b.TourID,
		&b.UserID,
		&b.Price,
		&b.Paid,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
