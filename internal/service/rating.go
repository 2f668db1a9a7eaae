package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/pkg/logger"
)

// ReviewStatsReader computes the review count and mean rating of a tour.
type ReviewStatsReader interface {
	ReviewStats(ctx context.Context, tourID string) (count int, average float64, err error)
}

// RatingWriter persists a tour's rating aggregate.
type RatingWriter interface {
	SetRatings(ctx context.Context, tourID string, stats domain.RatingStats) error
}

// RatingMetrics counts background recomputations by outcome.
type RatingMetrics struct {
	recalculations *prometheus.CounterVec
	duration       prometheus.Histogram
}

// NewRatingMetrics registers the aggregator collectors with reg.
func NewRatingMetrics(reg prometheus.Registerer) *RatingMetrics {
	m := &RatingMetrics{
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_rating_recalculations_total",
			Help: "Tour rating recomputations by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "natours_rating_recalculation_duration_seconds",
			Help:    "Latency of one tour rating recomputation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.recalculations, m.duration)
	return m
}

// RatingAggregator keeps ratings_quantity and ratings_average of a tour in
// line with its reviews. Recomputation reads the full review set, so running
// it again is always safe.
type RatingAggregator struct {
	reviews ReviewStatsReader
	tours   RatingWriter
	metrics *RatingMetrics
	logger  *slog.Logger

	locks keyedMutex
	wg    sync.WaitGroup
}

// NewRatingAggregator creates an aggregator. metrics may be nil.
func NewRatingAggregator(reviews ReviewStatsReader, tours RatingWriter, metrics *RatingMetrics, logger *slog.Logger) *RatingAggregator {
	return &RatingAggregator{
		reviews: reviews,
		tours:   tours,
		metrics: metrics,
		logger:  logger,
		locks:   keyedMutex{locks: make(map[string]*keyedLock)},
	}
}

// Recalculate recomputes and stores the rating aggregate of tourID. A tour
// without reviews is reset to the defaults.
func (a *RatingAggregator) Recalculate(ctx context.Context, tourID string) (domain.RatingStats, error) {
	unlock := a.locks.lock(tourID)
	defer unlock()

	count, average, err := a.reviews.ReviewStats(ctx, tourID)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("aggregate reviews of tour %s: %w", tourID, err)
	}

	stats := domain.DefaultRatingStats()
	if count > 0 {
		stats = domain.RatingStats{Quantity: count, Average: domain.RoundRating(average)}
	}

	if err := a.tours.SetRatings(ctx, tourID, stats); err != nil {
		return domain.RatingStats{}, fmt.Errorf("store ratings of tour %s: %w", tourID, err)
	}
	return stats, nil
}

// Schedule runs Recalculate in the background. The recomputation outlives
// ctx's cancellation and its failure never reaches the caller.
func (a *RatingAggregator) Schedule(ctx context.Context, tourID string) {
	if tourID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		start := time.Now()
		stats, err := a.Recalculate(ctx, tourID)
		a.observe(time.Since(start), err)

		l := logger.WithContext(ctx, a.logger)
		if err != nil {
			l.ErrorContext(ctx, "tour rating recalculation failed",
				slog.String("tour_id", tourID),
				slog.String("error", err.Error()),
			)
			return
		}
		l.DebugContext(ctx, "tour rating recalculated",
			slog.String("tour_id", tourID),
			slog.Int("ratings_quantity", stats.Quantity),
			slog.Float64("ratings_average", stats.Average),
		)
	}()
}

// Wait blocks until every scheduled recomputation has finished.
func (a *RatingAggregator) Wait() {
	a.wg.Wait()
}

func (a *RatingAggregator) observe(d time.Duration, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.duration.Observe(d.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	a.metrics.recalculations.WithLabelValues(result).Inc()
}

// keyedMutex serializes work per key. Entries are dropped once no goroutine
// holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
