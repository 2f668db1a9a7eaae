package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one event. A returned error triggers a retry.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig configures a consumer group reading one or more topics.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topics       []string
	MaxRetries   int
	RetryBackoff time.Duration
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a Handler over a consumer group with bounded retries.
// Messages are committed after success, after retries are exhausted, and when
// they cannot be decoded, so one bad message never blocks a partition.
type Consumer struct {
	reader    MessageReader
	handler   Handler
	cfg       ConsumerConfig
	metrics   *Metrics
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go group reader. metrics may be nil.
func NewConsumer(cfg ConsumerConfig, handler Handler, metrics *Metrics, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MaxBytes:    1 << 20,
	})
	return NewConsumerWithReader(r, cfg, handler, metrics, logger)
}

// NewConsumerWithReader creates a consumer on top of an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, metrics *Metrics, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Consumer{reader: r, handler: handler, cfg: cfg, metrics: metrics, logger: logger}
}

// Run consumes until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started",
		slog.String("group", c.cfg.GroupID),
		slog.Any("topics", c.cfg.Topics),
	)
	defer func() { _ = c.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("fetch message failed", slog.String("error", err.Error()))
			continue
		}
		if err := c.process(ctx, msg); err != nil {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit message failed",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process runs the handler with retries. It only returns an error when ctx
// ends, in which case the message must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("undecodable message skipped",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.Warn("event handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
		}
	}

	if c.metrics != nil {
		c.metrics.handleSeconds.WithLabelValues(msg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())
		if lastErr != nil {
			c.metrics.failed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
		} else {
			c.metrics.consumed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
		}
	}
	if lastErr != nil {
		c.logger.Error("event dropped after retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
		)
	}
	return nil
}

// Close closes the reader once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
