package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/natours/internal/auth"
	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/event"
	"github.com/utafrali/natours/internal/payment"
	paymentmock "github.com/utafrali/natours/internal/payment/mock"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/pkg/health"
	"github.com/utafrali/natours/pkg/httputil"
)

// --- Mock Repositories ---

type mockTourRepository struct {
	mock.Mock
}

func (m *mockTourRepository) List(ctx context.Context, params query.Params) (*query.Result, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Result), args.Error(1)
}

func (m *mockTourRepository) GetByID(ctx context.Context, id string) (*domain.Tour, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tour), args.Error(1)
}

func (m *mockTourRepository) Create(ctx context.Context, tour *domain.Tour) error {
	args := m.Called(ctx, tour)
	return args.Error(0)
}

func (m *mockTourRepository) Update(ctx context.Context, tour *domain.Tour) error {
	args := m.Called(ctx, tour)
	return args.Error(0)
}

func (m *mockTourRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTourRepository) Stats(ctx context.Context, minRating float64) ([]domain.TourStats, error) {
	args := m.Called(ctx, minRating)
	return args.Get(0).([]domain.TourStats), args.Error(1)
}

func (m *mockTourRepository) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	args := m.Called(ctx, year)
	return args.Get(0).([]domain.MonthlyPlan), args.Error(1)
}

func (m *mockTourRepository) Within(ctx context.Context, lat, lng, radius float64) ([]domain.Tour, error) {
	args := m.Called(ctx, lat, lng, radius)
	return args.Get(0).([]domain.Tour), args.Error(1)
}

func (m *mockTourRepository) Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error) {
	args := m.Called(ctx, lat, lng, multiplier)
	return args.Get(0).([]domain.TourDistance), args.Error(1)
}

func (m *mockTourRepository) BookedBy(ctx context.Context, userID string) ([]domain.Tour, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Tour), args.Error(1)
}

func (m *mockTourRepository) SetRatings(ctx context.Context, tourID string, stats domain.RatingStats) error {
	args := m.Called(ctx, tourID, stats)
	return args.Error(0)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) List(ctx context.Context, tourID string, params query.Params) (*query.Result, error) {
	args := m.Called(ctx, tourID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Result), args.Error(1)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByTour(ctx context.Context, tourID string) ([]domain.Review, error) {
	args := m.Called(ctx, tourID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepository) ResolveRef(ctx context.Context, id string) (*domain.ReviewRef, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewRef), args.Error(1)
}

func (m *mockReviewRepository) ReviewStats(ctx context.Context, tourID string) (int, float64, error) {
	args := m.Called(ctx, tourID)
	return args.Int(0), args.Get(1).(float64), args.Error(2)
}

type mockBookingRepository struct {
	mock.Mock
}

func (m *mockBookingRepository) List(ctx context.Context, scope repository.BookingScope, params query.Params) (*query.Result, error) {
	args := m.Called(ctx, scope, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Result), args.Error(1)
}

func (m *mockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockBookingRepository) Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) List(ctx context.Context, params query.Params) (*query.Result, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Result), args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	args := m.Called(ctx, id, hash, changedAt)
	return args.Error(0)
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, id string, tokenHash *string, expires *time.Time) error {
	args := m.Called(ctx, id, tokenHash, expires)
	return args.Error(0)
}

func (m *mockUserRepository) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Collaborators ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendWelcome(ctx context.Context, u *domain.User, url string) error {
	args := m.Called(ctx, u, url)
	return args.Error(0)
}

func (m *mockNotifier) SendPasswordReset(ctx context.Context, u *domain.User, url string) error {
	args := m.Called(ctx, u, url)
	return args.Error(0)
}

func (m *mockNotifier) SendBookingConfirmation(ctx context.Context, u *domain.User, tourName string, price float64, url string) error {
	args := m.Called(ctx, u, tourName, price, url)
	return args.Error(0)
}


// recordingScheduler records the tours whose rating was scheduled.
type recordingScheduler struct {
	mu    sync.Mutex
	tours []string
}

func (s *recordingScheduler) Schedule(_ context.Context, tourID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tours = append(s.tours, tourID)
}

func (s *recordingScheduler) scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tours...)
}

// --- Test Helpers ---

const (
	testSecret        = "handler-test-secret-long-enough"
	testWebhookSecret = "whsec_handler"

	tourUUID = "8f1d6c1e-4a0b-4c5e-9c7a-1b2c3d4e5f60"
	userUUID = "0a7c1d2e-3f40-4b5c-8d6e-7f8091a2b3c4"
	adminID  = "1b8d2e3f-4051-4c6d-9e7f-8091a2b3c4d5"
	reviewID = "2c9e3f40-5162-4d7e-8f90-91a2b3c4d5e6"
	bookID   = "3daf4051-6273-4e8f-9001-a2b3c4d5e6f7"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testApp is the full router backed by real services over mock repositories.
type testApp struct {
	tours     *mockTourRepository
	reviews   *mockReviewRepository
	bookings  *mockBookingRepository
	users     *mockUserRepository
	notifier  *mockNotifier
	scheduler *recordingScheduler
	jwt       *auth.JWTManager
	router    http.Handler
}

func newTestApp() *testApp {
	a := &testApp{
		tours:     new(mockTourRepository),
		reviews:   new(mockReviewRepository),
		bookings:  new(mockBookingRepository),
		users:     new(mockUserRepository),
		notifier:  new(mockNotifier),
		scheduler: &recordingScheduler{},
		jwt:       auth.NewJWTManager(testSecret, time.Hour),
	}

	logger := testLogger()
	producer := event.NewProducer(nil, logger)
	const publicURL = "https://natours.test"

	bookingSvc := service.NewBookingService(a.bookings, a.tours, a.users, producer, a.notifier, publicURL, logger)
	svcs := Services{
		Tours:    service.NewTourService(a.tours, a.reviews, producer, logger),
		Reviews:  service.NewReviewService(a.reviews, a.tours, a.scheduler, producer, logger),
		Bookings: bookingSvc,
		Checkout: service.NewCheckoutService(
			paymentmock.NewGateway(publicURL),
			payment.NewWebhookVerifier(testWebhookSecret, 0),
			a.tours, a.users, bookingSvc,
			service.CheckoutConfig{PublicURL: publicURL},
			logger,
		),
		Auth:  service.NewAuthService(a.users, a.jwt, a.notifier, publicURL, logger),
		Users: service.NewUserService(a.users, logger),
	}

	a.router = NewRouter(svcs, health.NewHandler(), RouterConfig{
		Cookie:          CookieConfig{MaxAge: time.Hour},
		TourCacheMaxAge: 60,
		Registry:        prometheus.NewRegistry(),
	}, logger)
	return a
}

// login makes u the caller of subsequent requests carrying the returned token.
func (a *testApp) login(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := a.jwt.Generate(u.ID)
	require.NoError(t, err)
	a.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	return token
}

func (a *testApp) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the response body into the httputil.Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// decodeList reads a list response body.
func decodeList(t *testing.T, rec *httptest.ResponseRecorder) httputil.ListResponse[map[string]any] {
	t.Helper()
	var resp httputil.ListResponse[map[string]any]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func newUser(id, role string) *domain.User {
	return &domain.User{
		ID:     id,
		Name:   "Leo Gillespie",
		Email:  "leo@example.com",
		Photo:  domain.DefaultPhoto,
		Role:   role,
		Active: true,
	}
}

func sampleTour() *domain.Tour {
	return &domain.Tour{
		ID:              tourUUID,
		Name:            "The Forest Hiker",
		Slug:            "the-forest-hiker",
		Duration:        5,
		MaxGroupSize:    25,
		Difficulty:      domain.DifficultyEasy,
		RatingsAverage:  4.7,
		RatingsQuantity: 37,
		Price:           397,
		Summary:         "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:      "tour-1-cover.jpg",
		Version:         2,
	}
}

func sampleResult(docs ...query.Document) *query.Result {
	return &query.Result{Documents: docs, Page: 1, Limit: 100}
}
