// Package event publishes natours domain events and consumes them to
// reconcile tour ratings.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/natours/internal/domain"
	pkgkafka "github.com/utafrali/natours/pkg/kafka"
	"github.com/utafrali/natours/pkg/logger"
)

// Aggregate type constants.
const (
	AggregateTour    = "tour"
	AggregateReview  = "review"
	AggregateBooking = "booking"
)

// Kafka topics for natours domain events. The event type equals the topic.
var (
	TopicTourCreated    = pkgkafka.Topic(AggregateTour, "created")
	TopicTourUpdated    = pkgkafka.Topic(AggregateTour, "updated")
	TopicTourDeleted    = pkgkafka.Topic(AggregateTour, "deleted")
	TopicReviewCreated  = pkgkafka.Topic(AggregateReview, "created")
	TopicReviewUpdated  = pkgkafka.Topic(AggregateReview, "updated")
	TopicReviewDeleted  = pkgkafka.Topic(AggregateReview, "deleted")
	TopicBookingCreated = pkgkafka.Topic(AggregateBooking, "created")
)

// TourData is the payload of tour events.
type TourData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Slug       string  `json:"slug,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Difficulty string  `json:"difficulty,omitempty"`
}

// ReviewData is the payload of review events. TourID is always set so
// consumers can recompute the tour's rating.
type ReviewData struct {
	ID     string  `json:"id"`
	TourID string  `json:"tour_id"`
	UserID string  `json:"user_id"`
	Rating float64 `json:"rating,omitempty"`
}

// BookingData is the payload of booking events.
type BookingData struct {
	ID     string  `json:"id"`
	TourID string  `json:"tour_id"`
	UserID string  `json:"user_id"`
	Price  float64 `json:"price"`
	Paid   bool    `json:"paid"`
}

// Publisher is the part of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes natours domain events. A Producer without a publisher
// drops every event, which is how the API runs without Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka may be nil.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishTourCreated publishes a tour.created event.
func (p *Producer) PublishTourCreated(ctx context.Context, t *domain.Tour) error {
	return p.publish(ctx, TopicTourCreated, AggregateTour, t.ID, tourData(t))
}

// PublishTourUpdated publishes a tour.updated event.
func (p *Producer) PublishTourUpdated(ctx context.Context, t *domain.Tour) error {
	return p.publish(ctx, TopicTourUpdated, AggregateTour, t.ID, tourData(t))
}

// PublishTourDeleted publishes a tour.deleted event.
func (p *Producer) PublishTourDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicTourDeleted, AggregateTour, id, TourData{ID: id})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, AggregateReview, r.ID, ReviewData{
		ID: r.ID, TourID: r.TourID, UserID: r.UserID, Rating: r.Rating,
	})
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewUpdated, AggregateReview, r.ID, ReviewData{
		ID: r.ID, TourID: r.TourID, UserID: r.UserID, Rating: r.Rating,
	})
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, ref *domain.ReviewRef) error {
	return p.publish(ctx, TopicReviewDeleted, AggregateReview, ref.ID, ReviewData{
		ID: ref.ID, TourID: ref.TourID, UserID: ref.UserID,
	})
}

// PublishBookingCreated publishes a booking.created event.
func (p *Producer) PublishBookingCreated(ctx context.Context, b *domain.Booking) error {
	return p.publish(ctx, TopicBookingCreated, AggregateBooking, b.ID, BookingData{
		ID: b.ID, TourID: b.TourID, UserID: b.UserID, Price: b.Price, Paid: b.Paid,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregate, id string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregate, id, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.RequestID = logger.RequestIDFromContext(ctx)

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", id),
	)
	return nil
}

func tourData(t *domain.Tour) TourData {
	return TourData{ID: t.ID, Name: t.Name, Slug: t.Slug, Price: t.Price, Difficulty: t.Difficulty}
}
