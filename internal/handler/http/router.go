package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yelpclone/directory/pkg/health"
	"github.com/yelpclone/directory/pkg/middleware"

	"github.com/yelpclone/directory/internal/service"
)

// RouterConfig carries the transport settings of the router.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	Session           SessionConfig
	PprofAllowedCIDRs []string
	// ChatRateLimit throttles POST /chat per session. A zero RPS disables it.
	ChatRateLimit middleware.RateLimitConfig
}

// Services groups the application services exposed over HTTP.
type Services struct {
	Businesses *service.BusinessService
	Reviews    *service.ReviewService
	Chat       *service.ChatService
	// Search is optional. /search is only mounted when it is set.
	Search *service.SearchService
}

// NewRouter creates a chi router with all directory routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware. MethodOverride runs first so routing, metrics and
	// access logs all see the effective method.
	r.Use(middleware.MethodOverride)
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	businessHandler := NewBusinessHandler(svcs.Businesses, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	chatHandler := NewChatHandler(svcs.Chat, logger)

	mux := r
	r.Group(func(r chi.Router) {
		r.Use(Session(cfg.Session))

		r.Get("/", indexHandler(cfg.ServiceName, mux))

		r.Route("/business", func(r chi.Router) {
			r.Get("/", businessHandler.ListBusinesses)
			r.Post("/", businessHandler.CreateBusiness)
			r.Get("/new", businessHandler.NewBusinessForm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", businessHandler.GetBusiness)
				r.Put("/", businessHandler.UpdateBusiness)
				r.Delete("/", businessHandler.DeleteBusiness)
				r.Get("/update", businessHandler.EditBusiness)

				r.Get("/reviews", reviewHandler.ListReviews)
				r.Post("/reviews", reviewHandler.AddReview)
				r.Delete("/reviews/{reviewId}", reviewHandler.RemoveReview)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(middleware.NoStore)

			send := http.Handler(http.HandlerFunc(chatHandler.Send))
			if cfg.ChatRateLimit.RPS > 0 {
				limit := cfg.ChatRateLimit
				limit.KeyFunc = chatRateKey
				send = middleware.RateLimit(limit, logger)(send)
			}
			r.Method(http.MethodPost, "/", send)
			r.Get("/history", chatHandler.History)
			r.Delete("/history", chatHandler.Reset)
		})

		if svcs.Search != nil {
			r.Get("/search", NewSearchHandler(svcs.Search, logger).Search)
		}
	})

	return r
}

// chatRateKey buckets chat requests by session. Requests that arrived
// without a valid session cookie share their client IP's bucket, so
// dropping the cookie does not reset the limit.
func chatRateKey(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value == SessionID(r) {
		return "session:" + c.Value
	}
	return "ip:" + middleware.ClientIP(r)
}
