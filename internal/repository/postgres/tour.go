package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// TourSchema is the set of tour fields reachable through query parameters.
var TourSchema = query.NewSchema("id", "-createdAt",
	query.Field{Name: "id", Column: "id", Kind: query.String},
	query.Field{Name: "name", Column: "name", Kind: query.String},
	query.Field{Name: "slug", Column: "slug", Kind: query.String},
	query.Field{Name: "duration", Column: "duration", Kind: query.Integer},
	query.Field{Name: "maxGroupSize", Column: "max_group_size", Kind: query.Integer},
	query.Field{Name: "difficulty", Column: "difficulty", Kind: query.String},
	query.Field{Name: "ratingsAverage", Column: "ratings_average", Kind: query.Number},
	query.Field{Name: "ratingsQuantity", Column: "ratings_quantity", Kind: query.Integer},
	query.Field{Name: "price", Column: "price", Kind: query.Number},
	query.Field{Name: "priceDiscount", Column: "price_discount", Kind: query.Number},
	query.Field{Name: "summary", Column: "summary", Kind: query.String},
	query.Field{Name: "description", Column: "description", Kind: query.String},
	query.Field{Name: "imageCover", Column: "image_cover", Kind: query.String},
	query.Field{Name: "images", Column: "images", Kind: query.StringArray},
	query.Field{Name: "startDates", Column: "start_dates", Kind: query.TimeArray},
	query.Field{Name: "startLocation", Column: "start_location", Kind: query.JSON},
	query.Field{Name: "locations", Column: "locations", Kind: query.JSON},
	query.Field{Name: "guides", Column: "guides", Kind: query.StringArray},
	query.Field{Name: "createdAt", Column: "created_at", Kind: query.Time},
	query.Field{Name: "version", Column: "version", Kind: query.Integer, Internal: true},
)

const tourColumns = `id, name, slug, duration, max_group_size, difficulty,
	ratings_average, ratings_quantity, price, price_discount, summary, description,
	image_cover, images, start_dates, secret_tour, start_location, locations, guides,
	created_at, updated_at, version`

// haversine is the great-circle angle in radians between each tour's start
// point and ($1 lat, $2 lng).
const haversine = `2 * ASIN(SQRT(
	POWER(SIN(RADIANS(start_lat - $1) / 2), 2) +
	COS(RADIANS($1)) * COS(RADIANS(start_lat)) * POWER(SIN(RADIANS(start_lng - $2) / 2), 2)))`

// earthRadiusMeters matches the radius the km unit uses.
const earthRadiusMeters = 6378100.0

// TourRepository implements repository.TourRepository using PostgreSQL.
type TourRepository struct {
	pool database.DBTX
	opts Options
}

// NewTourRepository creates a new PostgreSQL-backed tour repository.
func NewTourRepository(pool database.DBTX, opts Options) *TourRepository {
	return &TourRepository{pool: pool, opts: opts}
}

// List returns one page of visible tours shaped by params.
func (r *TourRepository) List(ctx context.Context, params query.Params) (*query.Result, error) {
	base := dialect.From("tours").Where(domain.VisibleTours())
	b := query.New(base, TourSchema, params, query.WithMaxLimit(r.opts.MaxLimit))
	return runQuery(ctx, r.pool, "ListTours", b)
}

// GetByID retrieves a visible tour by its ID.
func (r *TourRepository) GetByID(ctx context.Context, id string) (*domain.Tour, error) {
	q := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1 AND secret_tour IS NOT TRUE`

	t, err := scanTour(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("tour", id)
		}
		return nil, fmt.Errorf("get tour: %w", err)
	}
	return t, nil
}

// Create inserts a new tour into the database.
func (r *TourRepository) Create(ctx context.Context, t *domain.Tour) error {
	startLocation, locations, err := marshalLocations(t)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO tours (id, name, slug, duration, max_group_size, difficulty, price, price_discount,
		                   summary, description, image_cover, images, start_dates, secret_tour,
		                   start_location, locations, guides, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.pool.Exec(ctx, q,
		t.ID,
		t.Name,
		t.Slug,
		t.Duration,
		t.MaxGroupSize,
		t.Difficulty,
		t.Price,
		t.PriceDiscount,
		t.Summary,
		t.Description,
		t.ImageCover,
		t.Images,
		t.StartDates,
		t.SecretTour,
		startLocation,
		locations,
		t.Guides,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("tour", "name", t.Name)
		}
		return fmt.Errorf("insert tour: %w", err)
	}
	return nil
}

// Update writes the client-settable fields of a tour. The rating aggregate is
// never touched here. A stale version yields a conflict.
func (r *TourRepository) Update(ctx context.Context, t *domain.Tour) error {
	startLocation, locations, err := marshalLocations(t)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	q := `
		UPDATE tours
		SET name = $1, slug = $2, duration = $3, max_group_size = $4, difficulty = $5,
		    price = $6, price_discount = $7, summary = $8, description = $9, image_cover = $10,
		    images = $11, start_dates = $12, secret_tour = $13, start_location = $14,
		    locations = $15, guides = $16, updated_at = $17, version = version + 1
		WHERE id = $18 AND version = $19`

	ct, err := r.pool.Exec(ctx, q,
		t.Name,
		t.Slug,
		t.Duration,
		t.MaxGroupSize,
		t.Difficulty,
		t.Price,
		t.PriceDiscount,
		t.Summary,
		t.Description,
		t.ImageCover,
		t.Images,
		t.StartDates,
		t.SecretTour,
		startLocation,
		locations,
		t.Guides,
		t.UpdatedAt,
		t.ID,
		t.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("tour", "name", t.Name)
		}
		return fmt.Errorf("update tour: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("tour was modified by another request, please retry")
	}
	t.Version++
	return nil
}

// Delete removes a tour from the database by its ID.
func (r *TourRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM tours WHERE id = $1 AND secret_tour IS NOT TRUE`, id)
	if err != nil {
		return fmt.Errorf("delete tour: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("tour", id)
	}
	return nil
}

// Stats aggregates tours rated at least minRating per upper-cased difficulty,
// cheapest average first.
func (r *TourRepository) Stats(ctx context.Context, minRating float64) (stats []domain.TourStats, err error) {
	q := `
		SELECT UPPER(difficulty) AS difficulty,
		       COUNT(*) AS num_tours,
		       COALESCE(SUM(ratings_quantity), 0) AS num_ratings,
		       AVG(ratings_average) AS avg_rating,
		       AVG(price) AS avg_price,
		       MIN(price) AS min_price,
		       MAX(price) AS max_price
		FROM tours
		WHERE secret_tour IS NOT TRUE AND ratings_average >= $1
		GROUP BY UPPER(difficulty)
		ORDER BY avg_price ASC`

	ctx, end := database.TraceQuery(ctx, "TourStats", q)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, q, minRating)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	defer rows.Close()

	stats = []domain.TourStats{}
	for rows.Next() {
		var s domain.TourStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating,
			&s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan tour stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour stats: %w", err)
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) (plan []domain.MonthlyPlan, err error) {
	q := `
		SELECT EXTRACT(MONTH FROM d)::INT AS month,
		       COUNT(*) AS num_tour_starts,
		       ARRAY_AGG(t.name ORDER BY t.name) AS tours
		FROM tours t, UNNEST(t.start_dates) AS d
		WHERE t.secret_tour IS NOT TRUE AND d >= $1 AND d < $2
		GROUP BY month
		ORDER BY num_tour_starts DESC, month ASC
		LIMIT 12`

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	ctx, end := database.TraceQuery(ctx, "MonthlyPlan", q)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	defer rows.Close()

	plan = []domain.MonthlyPlan{}
	for rows.Next() {
		var p domain.MonthlyPlan
		if err := rows.Scan(&p.Month, &p.NumTourStarts, &p.Tours); err != nil {
			return nil, fmt.Errorf("scan monthly plan: %w", err)
		}
		plan = append(plan, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly plan: %w", err)
	}
	return plan, nil
}

// Within returns visible tours whose start point lies inside radius radians.
func (r *TourRepository) Within(ctx context.Context, lat, lng, radius float64) ([]domain.Tour, error) {
	q := `SELECT ` + tourColumns + ` FROM tours
		WHERE secret_tour IS NOT TRUE AND start_lat IS NOT NULL
		  AND ` + haversine + ` <= $3
		ORDER BY created_at DESC`

	return r.listTours(ctx, "ToursWithin", q, lat, lng, radius)
}

// Distances returns each visible tour's distance from lat, lng, nearest first.
func (r *TourRepository) Distances(ctx context.Context, lat, lng, multiplier float64) (out []domain.TourDistance, err error) {
	q := `SELECT id, name, ` + haversine + ` * $3 AS distance FROM tours
		WHERE secret_tour IS NOT TRUE AND start_lat IS NOT NULL
		ORDER BY distance ASC`

	ctx, end := database.TraceQuery(ctx, "TourDistances", q)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, q, lat, lng, earthRadiusMeters*multiplier)
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	defer rows.Close()

	out = []domain.TourDistance{}
	for rows.Next() {
		var d domain.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan tour distance: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour distances: %w", err)
	}
	return out, nil
}

// BookedBy returns the visible tours a user has booked.
func (r *TourRepository) BookedBy(ctx context.Context, userID string) ([]domain.Tour, error) {
	q := `SELECT ` + tourColumns + ` FROM tours
		WHERE secret_tour IS NOT TRUE
		  AND id IN (SELECT tour_id FROM bookings WHERE user_id = $1)
		ORDER BY name ASC`

	return r.listTours(ctx, "BookedTours", q, userID)
}

// SetRatings overwrites the rating aggregate without bumping the version, so
// recomputations never invalidate a concurrent client edit.
func (r *TourRepository) SetRatings(ctx context.Context, tourID string, stats domain.RatingStats) (err error) {
	q := `UPDATE tours SET ratings_quantity = $2, ratings_average = $3, updated_at = NOW() WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "SetTourRatings", q)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, q, tourID, stats.Quantity, stats.Average)
	if err != nil {
		return fmt.Errorf("set tour ratings: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("tour", tourID)
	}
	return nil
}

func (r *TourRepository) listTours(ctx context.Context, op, q string, args ...any) (tours []domain.Tour, err error) {
	ctx, end := database.TraceQuery(ctx, op, q)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tours = []domain.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tours = append(tours, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return tours, nil
}

func scanTour(row pgx.Row) (*domain.Tour, error) {
	var (
		t             domain.Tour
		startLocation []byte
		locations     []byte
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.Duration,
		&t.MaxGroupSize,
		&t.Difficulty,
		&t.RatingsAverage,
		&t.RatingsQuantity,
		&t.Price,
		&t.PriceDiscount,
		&t.Summary,
		&t.Description,
		&t.ImageCover,
		&t.Images,
		&t.StartDates,
		&t.SecretTour,
		&startLocation,
		&locations,
		&t.Guides,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}

	if len(startLocation) > 0 {
		t.StartLocation = &domain.GeoPoint{}
		if err := json.Unmarshal(startLocation, t.StartLocation); err != nil {
			return nil, fmt.Errorf("unmarshal start location: %w", err)
		}
	}
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &t.Locations); err != nil {
			return nil, fmt.Errorf("unmarshal locations: %w", err)
		}
	}
	t.DurationWeeks = t.Weeks()
	return &t, nil
}

// marshalLocations encodes the JSONB columns and replaces nil slices, which
// pgx would write as NULL into NOT NULL array columns.
func marshalLocations(t *domain.Tour) (startLocation, locations []byte, err error) {
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Guides == nil {
		t.Guides = []string{}
	}
	if t.Locations == nil {
		t.Locations = []domain.GeoPoint{}
	}
	if t.StartLocation != nil {
		if startLocation, err = json.Marshal(t.StartLocation); err != nil {
			return nil, nil, fmt.Errorf("marshal start location: %w", err)
		}
	}
	if locations, err = json.Marshal(t.Locations); err != nil {
		return nil, nil, fmt.Errorf("marshal locations: %w", err)
	}
	return startLocation, locations, nil
}
