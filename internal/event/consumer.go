package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/natours/internal/domain"
	apperrors "github.com/utafrali/natours/pkg/errors"
	pkgkafka "github.com/utafrali/natours/pkg/kafka"
)

// ReconcileGroupID is the consumer group of the rating reconciler.
const ReconcileGroupID = "natours-rating-reconciler"

// ReconcileTopics are the topics the rating reconciler reads.
func ReconcileTopics() []string {
	return []string{TopicReviewCreated, TopicReviewUpdated, TopicReviewDeleted}
}

// Recalculator recomputes a tour's rating aggregate.
type Recalculator interface {
	Recalculate(ctx context.Context, tourID string) (domain.RatingStats, error)
}

// RatingReconciler recomputes the rating of the tour named by every review
// event. It repairs aggregates whose in-process recomputation was lost.
type RatingReconciler struct {
	ratings Recalculator
	logger  *slog.Logger
}

// NewRatingReconciler creates a consumer handler.
func NewRatingReconciler(ratings Recalculator, logger *slog.Logger) *RatingReconciler {
	return &RatingReconciler{
		ratings: ratings,
		logger:  logger,
	}
}

// Handle processes an incoming review event. Errors are retried by the
// consumer.
func (h *RatingReconciler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicReviewCreated, TopicReviewUpdated, TopicReviewDeleted:
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var data ReviewData
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.ErrorContext(ctx, "undecodable review event skipped",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if data.TourID == "" {
		return nil
	}

	stats, err := h.ratings.Recalculate(ctx, data.TourID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("reconcile tour %s: %w", data.TourID, err)
	}

	h.logger.DebugContext(ctx, "tour rating reconciled",
		slog.String("tour_id", data.TourID),
		slog.String("event_type", event.EventType),
		slog.Int("ratings_quantity", stats.Quantity),
		slog.Float64("ratings_average", stats.Average),
	)
	return nil
}
