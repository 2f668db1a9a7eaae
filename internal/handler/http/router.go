package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/pkg/health"
	"github.com/utafrali/natours/pkg/middleware"
)

// Services groups the business services exposed over HTTP.
type Services struct {
	Tours    *service.TourService
	Reviews  *service.ReviewService
	Bookings *service.BookingService
	Checkout *service.CheckoutService
	Auth     *service.AuthService
	Users    *service.UserService
}

// RouterConfig holds the transport settings of the API.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	Cookie     CookieConfig
	PprofCIDRs []string
	// Limiter throttles /api/v1 per client IP. Nil disables rate limiting.
	Limiter middleware.RateLimiter
	// TourCacheMaxAge is the public max-age in seconds of anonymous tour reads.
	TourCacheMaxAge int
	Registry        *prometheus.Registry
}

// NewRouter creates a chi router with all natours routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry).Middleware)
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	tourHandler := NewTourHandler(svcs.Tours, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	bookingHandler := NewBookingHandler(svcs.Bookings, svcs.Checkout, svcs.Tours, logger)
	authHandler := NewAuthHandler(svcs.Auth, cfg.Cookie, logger)
	userHandler := NewUserHandler(svcs.Users, logger)

	protect := middleware.Authenticate(svcs.Auth, logger)
	staff := middleware.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide)

	// The gateway signs the exact body bytes, so the webhook sits outside the
	// JSON API group.
	r.Post("/webhook-checkout", bookingHandler.WebhookCheckout)

	reviewRoutes := func(r chi.Router) {
		r.Use(protect)

		r.Get("/", reviewHandler.ListReviews)
		r.With(middleware.RequireRole(domain.RoleUser)).Post("/", reviewHandler.CreateReview)
		r.Get("/{id}", reviewHandler.GetReview)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleUser, domain.RoleAdmin))
			r.Patch("/{id}", reviewHandler.UpdateReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(middleware.RateLimit(cfg.Limiter, logger))
		}
		r.Use(ContentTypeJSON)

		r.Route("/tours", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.TourCacheMaxAge > 0 {
					r.Use(middleware.CacheControl(cfg.TourCacheMaxAge))
				}
				r.Get("/", tourHandler.ListTours)
				r.Get("/top-5-cheap", tourHandler.TopCheapTours)
				r.Get("/tour-stats", tourHandler.TourStats)
				r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", tourHandler.ToursWithin)
				r.Get("/distances/{latlng}/unit/{unit}", tourHandler.Distances)
				r.Get("/{id}", tourHandler.GetTour)
			})

			r.With(protect, middleware.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
				Get("/monthly-plan/{year}", tourHandler.MonthlyPlan)

			r.Group(func(r chi.Router) {
				r.Use(protect, staff)
				r.Post("/", tourHandler.CreateTour)
				r.Patch("/{id}", tourHandler.UpdateTour)
				r.Delete("/{id}", tourHandler.DeleteTour)
			})

			r.Route("/{tourId}/reviews", reviewRoutes)
			r.Route("/{tourId}/bookings", func(r chi.Router) {
				r.Use(protect, staff)
				r.Get("/", bookingHandler.ListBookings)
				r.Post("/", bookingHandler.CreateBooking)
			})
		})

		r.Route("/reviews", reviewRoutes)

		r.Route("/bookings", func(r chi.Router) {
			r.Use(protect)

			r.Get("/checkout-session/{tourId}", bookingHandler.GetCheckoutSession)
			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Get("/", bookingHandler.ListBookings)
				r.Post("/", bookingHandler.CreateBooking)
				r.Get("/{id}", bookingHandler.GetBooking)
				r.Patch("/{id}", bookingHandler.UpdateBooking)
				r.Delete("/{id}", bookingHandler.DeleteBooking)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Get("/logout", authHandler.Logout)
			r.Post("/forgotPassword", authHandler.ForgotPassword)
			r.Patch("/resetPassword/{token}", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Patch("/updateMyPassword", authHandler.UpdatePassword)
				r.Get("/me", userHandler.GetMe)
				r.Patch("/updateMe", userHandler.UpdateMe)
				r.Delete("/deleteMe", userHandler.DeleteMe)
				r.Get("/me/tours", bookingHandler.MyTours)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.RoleAdmin))
					r.Get("/", userHandler.ListUsers)
					r.Get("/{id}", userHandler.GetUser)
					r.Patch("/{id}", userHandler.UpdateUser)
					r.Delete("/{id}", userHandler.DeleteUser)
				})
			})
		})
	})

	return r
}
