package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/event"
	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/repository"
	pkgkafka "github.com/utafrali/natours/pkg/kafka"
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

// recordingPublisher records published events by topic.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer(pub *recordingPublisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

func boolPtr(b bool) *bool {
	return &b
}

func sampleTour() *domain.Tour {
	return &domain.Tour{
		ID:              "tour-1",
		Name:            "The Forest Hiker",
		Slug:            "the-forest-hiker",
		Duration:        5,
		DurationWeeks:   5.0 / 7,
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

func sampleUser() *domain.User {
	return &domain.User{
		ID:     "user-1",
		Name:   "Leo Gillespie",
		Email:  "leo@example.com",
		Photo:  domain.DefaultPhoto,
		Role:   domain.RoleUser,
		Active: true,
	}
}
