package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/natours/internal/auth"
	"github.com/utafrali/natours/internal/config"
	"github.com/utafrali/natours/internal/event"
	handler "github.com/utafrali/natours/internal/handler/http"
	"github.com/utafrali/natours/internal/mailer"
	"github.com/utafrali/natours/internal/payment"
	paymentmock "github.com/utafrali/natours/internal/payment/mock"
	"github.com/utafrali/natours/internal/ratelimit"
	"github.com/utafrali/natours/internal/repository/postgres"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/migrations"
	"github.com/utafrali/natours/pkg/database"
	"github.com/utafrali/natours/pkg/health"
	"github.com/utafrali/natours/pkg/httpclient"
	pkgkafka "github.com/utafrali/natours/pkg/kafka"
	"github.com/utafrali/natours/pkg/middleware"
	"github.com/utafrali/natours/pkg/tracing"
)

const serviceName = "natours"

// App wires together all dependencies and runs the natours API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	ratings        *service.RatingAggregator
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	wg             sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}

	if err := a.initStorage(ctx, registry); err != nil {
		_ = a.closeInfra()
		return nil, err
	}
	kafkaMetrics := a.initKafka(registry)

	// Build the dependency graph.
	opts := postgres.Options{MaxLimit: cfg.QueryMaxLimit}
	tourRepo := postgres.NewTourRepository(a.pool, opts)
	reviewRepo := postgres.NewReviewRepository(a.pool, opts)
	bookingRepo := postgres.NewBookingRepository(a.pool, opts)
	userRepo := postgres.NewUserRepository(a.pool, opts)

	var publisher event.Publisher
	if a.producer != nil {
		publisher = a.producer
	}
	eventProducer := event.NewProducer(publisher, logger)

	notifier, err := newMailer(cfg, logger)
	if err != nil {
		_ = a.closeInfra()
		return nil, err
	}

	a.ratings = service.NewRatingAggregator(reviewRepo, tourRepo, service.NewRatingMetrics(registry), logger)
	if cfg.KafkaReconcileEnabled {
		reconciler := event.NewRatingReconciler(a.ratings, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:      cfg.KafkaBrokers,
			GroupID:      event.ReconcileGroupID,
			Topics:       event.ReconcileTopics(),
			MaxRetries:   3,
			RetryBackoff: time.Second,
		}, reconciler.Handle, kafkaMetrics, logger)
		logger.Info("rating reconciler enabled", slog.String("group", event.ReconcileGroupID))
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiryDuration())
	bookingService := service.NewBookingService(bookingRepo, tourRepo, userRepo, eventProducer, notifier, cfg.PublicURL, logger)
	svcs := handler.Services{
		Tours:    service.NewTourService(tourRepo, reviewRepo, eventProducer, logger),
		Reviews:  service.NewReviewService(reviewRepo, tourRepo, a.ratings, eventProducer, logger),
		Bookings: bookingService,
		Checkout: service.NewCheckoutService(
			newGateway(cfg, registry, logger),
			payment.NewWebhookVerifier(cfg.PaymentWebhookSecret, payment.DefaultTolerance),
			tourRepo,
			userRepo,
			bookingService,
			service.CheckoutConfig{PublicURL: cfg.PublicURL, Currency: cfg.PaymentCurrency},
			logger,
		),
		Auth:  service.NewAuthService(userRepo, jwtManager, notifier, cfg.PublicURL, logger),
		Users: service.NewUserService(userRepo, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(svcs, healthHandler, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
		},
		Cookie: handler.CookieConfig{
			MaxAge: cfg.CookieExpiryDuration(),
			Secure: !cfg.IsDevelopment(),
		},
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		Limiter:         a.newLimiter(),
		TourCacheMaxAge: cfg.TourCacheMaxAgeSecs,
		Registry:        registry,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStorage connects PostgreSQL, applies migrations and, when configured,
// connects Redis.
func (a *App) initStorage(ctx context.Context, registry *prometheus.Registry) error {
	cfg := a.cfg
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(registry, pool, serviceName); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	if cfg.RedisAddr == "" {
		return nil
	}
	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	return nil
}

// initKafka creates the event producer. Without brokers events are dropped.
func (a *App) initKafka(registry *prometheus.Registry) *pkgkafka.Metrics {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.logger.Info("kafka disabled, domain events will not be published")
		return nil
	}
	metrics := pkgkafka.NewMetrics(registry)
	a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}, metrics, a.logger)
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	return metrics
}

// newLimiter shares request counts through Redis when it is connected and
// counts per process otherwise.
func (a *App) newLimiter() middleware.RateLimiter {
	window := a.cfg.RateLimitWindowDuration()
	if a.redis != nil {
		return ratelimit.NewFixedWindow(a.redis, a.cfg.RateLimitRequests, window)
	}
	return ratelimit.NewLocal(a.cfg.RateLimitRequests, window)
}

func newGateway(cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) payment.Gateway {
	if strings.EqualFold(cfg.PaymentGateway, "mock") {
		logger.Warn("using mock payment gateway")
		return paymentmock.NewGateway(cfg.PaymentBaseURL)
	}
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("payment"),
		httpclient.NewBreakerMetrics(registry),
		logger,
	)
	return payment.NewHTTPGateway(client, cfg.PaymentBaseURL, cfg.PaymentSecretKey)
}

func newMailer(cfg *config.Config, logger *slog.Logger) (*mailer.Mailer, error) {
	var sender mailer.Sender
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		sender = mailer.NewLogSender(logger)
	} else {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}
	m, err := mailer.New(sender, cfg.EmailFrom, logger)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	return m, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("rating reconciler stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Rating aggregator (finish scheduled recomputations)
// 3. Reconcile consumer
// 4. Tracer
// 5. Kafka producer, Redis, PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Recomputations scheduled by drained requests still need the pool.
	a.ratings.Wait()

	// 3. Stop the reconciler before the pool it writes through goes away.
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.wg.Wait()
	}

	// 4. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close connections.
	if err := a.closeInfra(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeInfra releases the producer, Redis and the pool, whichever exist.
func (a *App) closeInfra() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
