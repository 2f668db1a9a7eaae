package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/natours/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the natours API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8000"`
	// PublicURL is the externally visible base of links in emails and
	// checkout redirects.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8000"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"natours"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"natours_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"natours"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"15"`
	SlowQueryThresholdMs  int   `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Query Builder
	QueryMaxLimit int `env:"QUERY_MAX_LIMIT" envDefault:"100"`

	// Redis backs the rate limiter. Empty falls back to an in-process limiter.
	RedisAddr     string `env:"REDIS_ADDR" envDefault:""`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Rate limiting of /api/v1 per client IP.
	RateLimitRequests   int    `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow     string `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	TourCacheMaxAgeSecs int    `env:"TOUR_CACHE_MAX_AGE_SECS" envDefault:"0"`

	// Kafka. No brokers disables event publishing.
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaReconcileEnabled bool     `env:"KAFKA_RECONCILE_ENABLED" envDefault:"false"`

	// JWT
	JWTSecret       string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry       string `env:"JWT_EXPIRES_IN" envDefault:"90d"`
	JWTCookieExpiry string `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90d"`

	// Payment gateway. "mock" needs no credentials.
	PaymentGateway       string `env:"PAYMENT_GATEWAY" envDefault:"mock"`
	PaymentBaseURL       string `env:"PAYMENT_BASE_URL" envDefault:"https://api.stripe.com"`
	PaymentSecretKey     string `env:"PAYMENT_SECRET_KEY" envDefault:""`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" envDefault:""`
	PaymentCurrency      string `env:"PAYMENT_CURRENCY" envDefault:"usd"`

	// Email. An empty SMTP host logs mail instead of sending it.
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"Natours <hello@natours.io>"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:""`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Observability
	OTELEnabled       bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint      string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate    float64  `env:"OTEL_SAMPLE_RATE" envDefault:"0.1"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load natours config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the API runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if err := pkgconfig.OneOf("LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error"); err != nil {
		errs = append(errs, err)
	}
	if c.QueryMaxLimit < 1 {
		errs = append(errs, fmt.Errorf("QUERY_MAX_LIMIT must be positive, got %d", c.QueryMaxLimit))
	}
	if c.RateLimitRequests < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests))
	}
	if _, err := ParseDuration(c.RateLimitWindow); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW: %w", err))
	}
	if _, err := ParseDuration(c.JWTExpiry); err != nil {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN: %w", err))
	}
	if _, err := ParseDuration(c.JWTCookieExpiry); err != nil {
		errs = append(errs, fmt.Errorf("JWT_COOKIE_EXPIRES_IN: %w", err))
	}
	if c.KafkaReconcileEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_RECONCILE_ENABLED requires KAFKA_BROKERS"))
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		errs = append(errs, fmt.Errorf("PUBLIC_URL must be an http(s) URL, got %q", c.PublicURL))
	}

	if err := pkgconfig.OneOf("PAYMENT_GATEWAY", c.PaymentGateway, "mock", "stripe"); err != nil {
		errs = append(errs, err)
	} else if strings.EqualFold(c.PaymentGateway, "stripe") && c.PaymentSecretKey == "" {
		errs = append(errs, errors.New("PAYMENT_SECRET_KEY is required for the stripe gateway"))
	}
	if len(c.PaymentCurrency) != 3 {
		errs = append(errs, fmt.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code, got %q", c.PaymentCurrency))
	}

	// In non-development environments, require an explicitly set, strong JWT
	// secret and a webhook secret.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment))
		} else if len(c.JWTSecret) < 32 {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret)))
		}
		if c.PaymentWebhookSecret == "" {
			errs = append(errs, fmt.Errorf("PAYMENT_WEBHOOK_SECRET must be set in %q mode", c.Environment))
		}
	}

	return errors.Join(errs...)
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day form
// such as "90d".
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

// JWTExpiryDuration returns the parsed token lifetime. Load has already
// validated the value.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, _ := ParseDuration(c.JWTExpiry)
	return d
}

func (c *Config) CookieExpiryDuration() time.Duration {
	d, _ := ParseDuration(c.JWTCookieExpiry)
	return d
}

func (c *Config) RateLimitWindowDuration() time.Duration {
	d, _ := ParseDuration(c.RateLimitWindow)
	return d
}
