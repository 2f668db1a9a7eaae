package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/httputil"
)

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts hits against a key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

// RateLimit limits requests per client IP. When the limiter itself fails the
// request is let through and the failure logged, so a Redis outage does not
// take the API down with it.
func RateLimit(limiter RateLimiter, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				l.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(int(d.ResetIn.Seconds())))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(d.ResetIn.Seconds())))
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many requests from this IP, please try again in an hour"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
