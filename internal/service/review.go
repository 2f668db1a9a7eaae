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

// RatingScheduler queues a background rating recomputation for a tour.
type RatingScheduler interface {
	Schedule(ctx context.Context, tourID string)
}

// Actor identifies the caller of an operation that checks ownership.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// ReviewService implements the business logic for review operations. Every
// write is followed by a rating recomputation of the reviewed tour.
type ReviewService struct {
	repo     repository.ReviewRepository
	tours    repository.TourRepository
	ratings  RatingScheduler
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(repo repository.ReviewRepository, tours repository.TourRepository, ratings RatingScheduler, producer *event.Producer, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:     repo,
		tours:    tours,
		ratings:  ratings,
		producer: producer,
		logger:   logger,
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	TourID string
	UserID string
	Review string
	Rating float64
}

// ListReviews returns a page of reviews, scoped to tourID when non-empty.
func (s *ReviewService) ListReviews(ctx context.Context, tourID string, params query.Params) (*query.Result, error) {
	res, err := s.repo.List(ctx, tourID, params)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return res, nil
}

// GetReview retrieves a review by its ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review by id: %w", err)
	}
	return review, nil
}

// CreateReview stores a review and schedules the tour's rating recomputation.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	text := strings.TrimSpace(input.Review)
	if text == "" {
		return nil, apperrors.InvalidInput("review can not be empty")
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	if input.TourID == "" {
		return nil, apperrors.InvalidInput("review must belong to a tour")
	}

	if _, err := s.tours.GetByID(ctx, input.TourID); err != nil {
		return nil, fmt.Errorf("get reviewed tour: %w", err)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.New().String(),
		Review:    text,
		Rating:    input.Rating,
		TourID:    input.TourID,
		UserID:    input.UserID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.ratings.Schedule(ctx, review.TourID)

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("tour_id", review.TourID),
	)
	return review, nil
}

// UpdateReview changes a review owned by the actor, or any review for an
// admin. The tour is resolved before the write so its rating can be
// recomputed afterwards.
func (s *ReviewService) UpdateReview(ctx context.Context, actor Actor, id string, patch domain.ReviewPatch) (*domain.Review, error) {
	if patch.Review != nil {
		text := strings.TrimSpace(*patch.Review)
		if text == "" {
			return nil, apperrors.InvalidInput("review can not be empty")
		}
		patch.Review = &text
	}
	if patch.Rating != nil {
		if err := validateRating(*patch.Rating); err != nil {
			return nil, err
		}
	}

	ref, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	review, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.ratings.Schedule(ctx, ref.TourID)

	if err := s.producer.PublishReviewUpdated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.updated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("tour_id", ref.TourID),
	)
	return review, nil
}

// DeleteReview removes a review owned by the actor, or any review for an
// admin, then schedules the recomputation of the tour it belonged to.
func (s *ReviewService) DeleteReview(ctx context.Context, actor Actor, id string) error {
	ref, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.ratings.Schedule(ctx, ref.TourID)

	if err := s.producer.PublishReviewDeleted(ctx, ref); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", ref.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", ref.ID),
		slog.String("tour_id", ref.TourID),
	)
	return nil
}

// authorize resolves the review reference and checks the actor may change it.
func (s *ReviewService) authorize(ctx context.Context, actor Actor, id string) (*domain.ReviewRef, error) {
	ref, err := s.repo.ResolveRef(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve review: %w", err)
	}
	if ref.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("you can only change your own reviews")
	}
	return ref, nil
}

func validateRating(r float64) error {
	if r < 1 || r > 5 {
		return apperrors.InvalidInput("rating must be between 1 and 5")
	}
	return nil
}
