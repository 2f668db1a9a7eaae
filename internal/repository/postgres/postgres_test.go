package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

var opts = Options{MaxLimit: 100}

func uniqueErr() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// ─── Tour fixtures ──────────────────────────────────────────────────────────

var tourColumnNames = []string{
	"id", "name", "slug", "duration", "max_group_size", "difficulty",
	"ratings_average", "ratings_quantity", "price", "price_discount", "summary", "description",
	"image_cover", "images", "start_dates", "secret_tour", "start_location", "locations", "guides",
	"created_at", "updated_at", "version",
}

func sampleTour() domain.Tour {
	start := domain.NewPoint(25.774, -80.185)
	start.Address = "301 Biscayne Blvd, Miami, FL 33132, USA"
	return domain.Tour{
		ID:              "tour-1",
		Name:            "The Sea Explorer",
		Slug:            "the-sea-explorer",
		Duration:        7,
		MaxGroupSize:    15,
		Difficulty:      domain.DifficultyMedium,
		RatingsAverage:  4.8,
		RatingsQuantity: 23,
		Price:           497,
		PriceDiscount:   floatPtr(100),
		Summary:         "Exploring the jaw-dropping US east coast by foot and by boat",
		ImageCover:      "tour-2-cover.jpg",
		Images:          []string{"tour-2-1.jpg"},
		StartDates:      []time.Time{time.Date(2026, 6, 19, 9, 0, 0, 0, time.UTC)},
		StartLocation:   &start,
		Locations:       []domain.GeoPoint{},
		Guides:          []string{"user-guide"},
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         2,
	}
}

func tourRow(t domain.Tour) []any {
	start, locs, _ := marshalLocations(&t)
	return []any{
		t.ID, t.Name, t.Slug, t.Duration, t.MaxGroupSize, t.Difficulty,
		t.RatingsAverage, t.RatingsQuantity, t.Price, t.PriceDiscount, t.Summary, t.Description,
		t.ImageCover, t.Images, t.StartDates, t.SecretTour, start, locs, t.Guides,
		t.CreatedAt, t.UpdatedAt, t.Version,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TourRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestTourRepository_List_DefaultQuery(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectQuery(`SELECT "id" AS "id", .+ FROM "tours" WHERE \("secret_tour" IS NOT TRUE\) ORDER BY "created_at" DESC, "id" ASC LIMIT \$1`).
		WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price"}).
			AddRow("tour-1", "The Sea Explorer", 497.0).
			AddRow("tour-2", "The Forest Hiker", 397.0))

	res, err := repo.List(context.Background(), query.Params{})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "The Sea Explorer", res.Documents[0]["name"])
	assert.Equal(t, 397.0, res.Documents[1]["price"])
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 100, res.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_List_FiltersSortsAndPages(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	params := query.Params{
		"price":  {Ops: map[string][]string{"lt": {"1000"}}},
		"sort":   {Values: []string{"-ratingsAverage,price"}},
		"fields": {Values: []string{"name,price"}},
		"page":   {Values: []string{"2"}},
		"limit":  {Values: []string{"5"}},
	}

	mock.ExpectQuery(`SELECT "id" AS "id", "name" AS "name", "price" AS "price" FROM "tours" WHERE \(\("secret_tour" IS NOT TRUE\) AND \("price" < \$1\)\) ORDER BY "ratings_average" DESC, "price" ASC, "id" ASC LIMIT \$2 OFFSET \$3`).
		WithArgs(1000.0, int64(5), int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price"}))

	res, err := repo.List(context.Background(), params)
	require.NoError(t, err)
	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 5, res.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_List_ColumnTypedFilters(t *testing.T) {
	tests := []struct {
		name   string
		params query.Params
		where  string
		args   []any
	}{
		{
			name:   "image element",
			params: query.Params{"images": {Values: []string{"tour-2-1.jpg"}}},
			where:  `\$1 = ANY\("images"\)`,
			args:   []any{"tour-2-1.jpg", int64(100)},
		},
		{
			name:   "start date element",
			params: query.Params{"startDates": {Values: []string{"2021-06-19"}}},
			where:  `\$1 = ANY\("start_dates"\)`,
			args:   []any{time.Date(2021, 6, 19, 0, 0, 0, 0, time.UTC), int64(100)},
		},
		{
			name:   "group size within int4",
			params: query.Params{"maxGroupSize": {Ops: map[string][]string{"gte": {"10"}}}},
			where:  `"max_group_size" >= \$1`,
			args:   []any{int64(10), int64(100)},
		},
		{
			name:   "group size beyond int4",
			params: query.Params{"maxGroupSize": {Ops: map[string][]string{"gte": {"1e12"}}}},
			where:  `FALSE`,
			args:   []any{int64(100)},
		},
		{
			name:   "locations",
			params: query.Params{"locations": {Values: []string{"abc"}}},
			where:  `FALSE`,
			args:   []any{int64(100)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			defer mock.Close()
			repo := NewTourRepository(mock, opts)

			mock.ExpectQuery(`FROM "tours" WHERE .*` + tt.where).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows([]string{"id"}))

			res, err := repo.List(context.Background(), tt.params)
			require.NoError(t, err)
			assert.Empty(t, res.Documents)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTourRepository_List_QueryError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectQuery(`FROM "tours"`).WithArgs(int64(100)).WillReturnError(errors.New("connection reset"))

	_, err := repo.List(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ListTours")
}

func TestTourRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \$1 AND secret_tour IS NOT TRUE`).
		WithArgs(tour.ID).
		WillReturnRows(pgxmock.NewRows(tourColumnNames).AddRow(tourRow(tour)...))

	got, err := repo.GetByID(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tour.Name, got.Name)
	assert.Equal(t, 100.0, *got.PriceDiscount)
	require.NotNil(t, got.StartLocation)
	assert.Equal(t, -80.185, got.StartLocation.Lng())
	assert.Equal(t, tour.StartLocation.Address, got.StartLocation.Address)
	assert.Equal(t, 1.0, got.DurationWeeks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectQuery(`FROM tours WHERE id`).WithArgs("secret").WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "secret")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Create_UniqueName(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	mock.ExpectExec("INSERT INTO tours").WillReturnError(uniqueErr())

	err := repo.Create(context.Background(), &tour)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Create_NormalizesNilSlices(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	tour.Images = nil
	tour.Guides = nil
	tour.StartLocation = nil

	mock.ExpectExec("INSERT INTO tours").
		WithArgs(
			tour.ID, tour.Name, tour.Slug, tour.Duration, tour.MaxGroupSize, tour.Difficulty,
			tour.Price, tour.PriceDiscount, tour.Summary, tour.Description, tour.ImageCover,
			[]string{}, tour.StartDates, false, []byte(nil), []byte("[]"), []string{},
			tour.CreatedAt, tour.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &tour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Update_StaleVersion(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	mock.ExpectExec(`UPDATE tours .+ WHERE id = \$18 AND version = \$19`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &tour)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 2, tour.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Update_BumpsVersion(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	mock.ExpectExec(`UPDATE tours`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), &tour))
	assert.Equal(t, 3, tour.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectExec("DELETE FROM tours").WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Stats(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectQuery(`SELECT UPPER\(difficulty\).+GROUP BY UPPER\(difficulty\)\s+ORDER BY avg_price ASC`).
		WithArgs(4.5).
		WillReturnRows(pgxmock.NewRows([]string{"difficulty", "num_tours", "num_ratings", "avg_rating", "avg_price", "min_price", "max_price"}).
			AddRow("EASY", 4, 26, 4.7, 1272.0, 397.0, 1997.0).
			AddRow("MEDIUM", 3, 12, 4.8, 1663.0, 497.0, 2997.0))

	stats, err := repo.Stats(context.Background(), 4.5)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, domain.TourStats{
		Difficulty: "EASY", NumTours: 4, NumRatings: 26, AvgRating: 4.7,
		AvgPrice: 1272, MinPrice: 397, MaxPrice: 1997,
	}, stats[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_MonthlyPlan(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UNNEST\(t.start_dates\)`).
		WithArgs(from, from.AddDate(1, 0, 0)).
		WillReturnRows(pgxmock.NewRows([]string{"month", "num_tour_starts", "tours"}).
			AddRow(7, 3, []string{"The Forest Hiker", "The Sea Explorer", "The Snow Adventurer"}))

	plan, err := repo.MonthlyPlan(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 7, plan[0].Month)
	assert.Equal(t, 3, plan[0].NumTourStarts)
	assert.Len(t, plan[0].Tours, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Within(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	tour := sampleTour()
	radius := domain.RadiusRadians(400, domain.UnitMiles)
	mock.ExpectQuery(`ASIN\(SQRT\(.+<= \$3`).
		WithArgs(34.1, -118.1, radius).
		WillReturnRows(pgxmock.NewRows(tourColumnNames).AddRow(tourRow(tour)...))

	tours, err := repo.Within(context.Background(), 34.1, -118.1, radius)
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, tour.ID, tours[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_Distances_ScalesMeters(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectQuery(`\* \$3 AS distance`).
		WithArgs(34.1, -118.1, 6378100.0*0.001).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "distance"}).
			AddRow("tour-1", "The Sea Explorer", 12.5))

	out, err := repo.Distances(context.Background(), 34.1, -118.1, domain.DistanceMultiplier(domain.UnitKilometers))
	require.NoError(t, err)
	assert.Equal(t, []domain.TourDistance{{ID: "tour-1", Name: "The Sea Explorer", Distance: 12.5}}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTourRepository_SetRatings(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewTourRepository(mock, opts)

	mock.ExpectExec(`UPDATE tours SET ratings_quantity = \$2, ratings_average = \$3`).
		WithArgs("tour-1", 3, 4.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE tours SET ratings_quantity`).
		WithArgs("gone", 0, 4.5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetRatings(context.Background(), "tour-1", domain.RatingStats{Quantity: 3, Average: 4.0}))
	assert.ErrorIs(t, repo.SetRatings(context.Background(), "gone", domain.DefaultRatingStats()), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// ReviewRepository
// ─────────────────────────────────────────────────────────────────────────────

var reviewColumnNames = []string{"id", "review", "rating", "tour_id", "user_id", "created_at", "updated_at", "version"}

func sampleReview() domain.Review {
	return domain.Review{
		ID: "review-1", Review: "Unforgettable", Rating: 5,
		TourID: "tour-1", UserID: "user-1", CreatedAt: now, UpdatedAt: now,
	}
}

func reviewRow(r domain.Review) []any {
	return []any{r.ID, r.Review, r.Rating, r.TourID, r.UserID, r.CreatedAt, r.UpdatedAt, r.Version}
}

func TestReviewRepository_List_ScopedToTour(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	mock.ExpectQuery(`FROM "reviews" AS "r" LEFT JOIN "users" AS "u" ON \("u"."id" = "r"."user_id"\) WHERE \(\("r"."tour_id" = \$1\) AND \("r"."rating" >= \$2\)\)`).
		WithArgs("tour-1", 4.0, int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "review", "rating", "userName"}).
			AddRow("review-1", "Unforgettable", 5.0, "Lourdes Browning"))

	params := query.Params{"rating": {Ops: map[string][]string{"gte": {"4"}}}}
	res, err := repo.List(context.Background(), "tour-1", params)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "Lourdes Browning", res.Documents[0]["userName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	rv := sampleReview()
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.Review, rv.Rating, rv.TourID, rv.UserID, rv.CreatedAt, rv.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &rv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_DuplicateTourUser(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	rv := sampleReview()
	mock.ExpectExec("INSERT INTO reviews").WillReturnError(uniqueErr())

	err := repo.Create(context.Background(), &rv)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Update_Partial(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	updated := sampleReview()
	updated.Rating = 3
	updated.Version = 1
	mock.ExpectQuery(`UPDATE reviews\s+SET review = COALESCE\(\$2, review\), rating = COALESCE\(\$3, rating\)`).
		WithArgs("review-1", (*string)(nil), floatPtr(3), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(reviewColumnNames).AddRow(reviewRow(updated)...))

	got, err := repo.Update(context.Background(), "review-1", domain.ReviewPatch{Rating: floatPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Rating)
	assert.Equal(t, "Unforgettable", got.Review)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	mock.ExpectExec("DELETE FROM reviews").WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ResolveRef(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	mock.ExpectQuery(`SELECT tour_id, user_id FROM reviews WHERE id = \$1`).
		WithArgs("review-1").
		WillReturnRows(pgxmock.NewRows([]string{"tour_id", "user_id"}).AddRow("tour-1", "user-1"))
	mock.ExpectQuery(`SELECT tour_id, user_id FROM reviews`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	ref, err := repo.ResolveRef(context.Background(), "review-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRef{ID: "review-1", TourID: "tour-1", UserID: "user-1"}, *ref)

	_, err = repo.ResolveRef(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ReviewStats(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock, opts)

	mock.ExpectQuery(`SELECT COUNT\(\*\), AVG\(rating\)\s+FROM reviews\s+WHERE tour_id = \$1\s+GROUP BY tour_id`).
		WithArgs("tour-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(3, 4.0))
	mock.ExpectQuery(`FROM reviews`).
		WithArgs("tour-empty").
		WillReturnError(pgx.ErrNoRows)

	count, avg, err := repo.ReviewStats(context.Background(), "tour-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 4.0, avg)

	count, avg, err = repo.ReviewStats(context.Background(), "tour-empty")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, avg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// BookingRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestBookingRepository_List_ScopedToUser(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewBookingRepository(mock, opts)

	mock.ExpectQuery(`FROM "bookings" AS "b" LEFT JOIN "tours" AS "t" .+ LEFT JOIN "users" AS "u" .+ WHERE \("b"."user_id" = \$1\)`).
		WithArgs("user-1", int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tourName"}).AddRow("booking-1", "The Sea Explorer"))

	res, err := repo.List(context.Background(), repository.BookingScope{UserID: "user-1"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "The Sea Explorer", res.Documents[0]["tourName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_Duplicate(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewBookingRepository(mock, opts)

	b := domain.Booking{ID: "booking-1", TourID: "tour-1", UserID: "user-1", Price: 497, Paid: true, CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, b.TourID, b.UserID, b.Price, b.Paid, b.CreatedAt, b.UpdatedAt).
		WillReturnError(uniqueErr())

	assert.ErrorIs(t, repo.Create(context.Background(), &b), apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewBookingRepository(mock, opts)

	mock.ExpectQuery("FROM bookings WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository
// ─────────────────────────────────────────────────────────────────────────────

var userColumnNames = []string{
	"id", "name", "email", "photo", "role", "password_hash", "password_changed_at",
	"password_reset_token", "password_reset_expires", "active", "created_at", "updated_at",
}

func sampleUser() domain.User {
	return domain.User{
		ID: "user-1", Name: "Leo Gillespie", Email: "leo@example.com", Photo: domain.DefaultPhoto,
		Role: domain.RoleUser, PasswordHash: "$2a$12$hash", Active: true, CreatedAt: now, UpdatedAt: now,
	}
}

func userRow(u domain.User) []any {
	return []any{
		u.ID, u.Name, u.Email, u.Photo, u.Role, u.PasswordHash, u.PasswordChangedAt,
		u.PasswordResetToken, u.PasswordResetExpires, u.Active, u.CreatedAt, u.UpdatedAt,
	}
}

func TestUserRepository_List_NeverTouchesCredentials(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	params := query.Params{
		"password_hash": {Values: []string{"x"}},
		"fields":        {Values: []string{"name,password_hash"}},
		"sort":          {Values: []string{"password_hash"}},
	}
	mock.ExpectQuery(`SELECT "id" AS "id", "name" AS "name" FROM "users" WHERE .*"active" IS TRUE.* AND FALSE.* ORDER BY "created_at" DESC, "id" ASC LIMIT \$1`).
		WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	res, err := repo.List(context.Background(), params)
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	u := sampleUser()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND active`).
		WithArgs(u.Email).
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(u)...))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, got.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByResetToken_Expired(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	mock.ExpectQuery(`password_reset_token = \$1 AND password_reset_expires > \$2`).
		WithArgs("hash", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByResetToken(context.Background(), "hash", now)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	u := sampleUser()
	mock.ExpectExec("INSERT INTO users").WillReturnError(uniqueErr())

	err := repo.Create(context.Background(), &u)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	u := sampleUser()
	u.Name = "Leo G."
	mock.ExpectQuery(`UPDATE users\s+SET name = COALESCE\(\$2, name\)`).
		WithArgs(u.ID, strPtr("Leo G."), (*string)(nil), (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(u)...))

	got, err := repo.Update(context.Background(), u.ID, domain.UserPatch{Name: strPtr("Leo G.")})
	require.NoError(t, err)
	assert.Equal(t, "Leo G.", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword_ClearsResetToken(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	mock.ExpectExec(`password_reset_token = NULL, password_reset_expires = NULL`).
		WithArgs("user-1", "new-hash", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "user-1", "new-hash", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetResetToken_Clear(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	mock.ExpectExec(`UPDATE users SET password_reset_token = \$2`).
		WithArgs("user-1", (*string)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetResetToken(context.Background(), "user-1", nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Deactivate(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewUserRepository(mock, opts)

	mock.ExpectExec(`UPDATE users SET active = FALSE`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Deactivate(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
