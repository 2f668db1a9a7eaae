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
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// ReviewSchema exposes reviews joined with their author's public profile.
var ReviewSchema = query.NewSchema("id", "-createdAt",
	query.Field{Name: "id", Column: "r.id", Kind: query.String},
	query.Field{Name: "review", Column: "r.review", Kind: query.String},
	query.Field{Name: "rating", Column: "r.rating", Kind: query.Number},
	query.Field{Name: "tour", Column: "r.tour_id", Kind: query.String},
	query.Field{Name: "user", Column: "r.user_id", Kind: query.String},
	query.Field{Name: "userName", Column: "u.name", Kind: query.String},
	query.Field{Name: "userPhoto", Column: "u.photo", Kind: query.String},
	query.Field{Name: "createdAt", Column: "r.created_at", Kind: query.Time},
	query.Field{Name: "version", Column: "r.version", Kind: query.Integer, Internal: true},
)

const reviewColumns = `id, review, rating, tour_id, user_id, created_at, updated_at, version`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
	opts Options
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX, opts Options) *ReviewRepository {
	return &ReviewRepository{pool: pool, opts: opts}
}

// List returns one page of reviews, limited to tourID when it is set.
func (r *ReviewRepository) List(ctx context.Context, tourID string, params query.Params) (*query.Result, error) {
	base := dialect.From(goqu.T("reviews").As("r")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id"))))
	if tourID != "" {
		base = base.Where(goqu.I("r.tour_id").Eq(tourID))
	}
	b := query.New(base, ReviewSchema, params, query.WithMaxLimit(r.opts.MaxLimit))
	return runQuery(ctx, r.pool, "ListReviews", b)
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// ListByTour returns all reviews of a tour, newest first.
func (r *ReviewRepository) ListByTour(ctx context.Context, tourID string) ([]domain.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE tour_id = $1 ORDER BY created_at DESC, id ASC`

	rows, err := r.pool.Query(ctx, q, tourID)
	if err != nil {
		return nil, fmt.Errorf("list tour reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// Create inserts a new review into the database.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	q := `
		INSERT INTO reviews (id, review, rating, tour_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, q,
		rv.ID,
		rv.Review,
		rv.Rating,
		rv.TourID,
		rv.UserID,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "tour", rv.TourID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and returns the updated review.
func (r *ReviewRepository) Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error) {
	q := `
		UPDATE reviews
		SET review = COALESCE($2, review), rating = COALESCE($3, rating),
		    updated_at = $4, version = version + 1
		WHERE id = $1
		RETURNING ` + reviewColumns

	rv, err := scanReview(r.pool.QueryRow(ctx, q, id, patch.Review, patch.Rating, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("update review: %w", err)
	}
	return rv, nil
}

// Delete removes a review from the database by its ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// ResolveRef reads the tour and author of a review.
func (r *ReviewRepository) ResolveRef(ctx context.Context, id string) (*domain.ReviewRef, error) {
	ref := domain.ReviewRef{ID: id}
	err := r.pool.QueryRow(ctx, `SELECT tour_id, user_id FROM reviews WHERE id = $1`, id).
		Scan(&ref.TourID, &ref.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("resolve review: %w", err)
	}
	return &ref, nil
}

// ReviewStats counts and averages a tour's ratings. A tour without reviews
// yields a zero count.
func (r *ReviewRepository) ReviewStats(ctx context.Context, tourID string) (count int, average float64, err error) {
	q := `
		SELECT COUNT(*), AVG(rating)
		FROM reviews
		WHERE tour_id = $1
		GROUP BY tour_id`

	ctx, end := database.TraceQuery(ctx, "ReviewStats", q)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, q, tourID).Scan(&count, &average)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("review stats: %w", err)
	}
	return count, average, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID,
		&rv.Review,
		&rv.Rating,
		&rv.TourID,
		&rv.UserID,
		&rv.CreatedAt,
		&rv.UpdatedAt,
		&rv.Version,
	)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}
