package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-buku/internal/auth"
	"github.com/noah-isme/toko-buku/internal/checkout"
	"github.com/noah-isme/toko-buku/internal/health"
	"github.com/noah-isme/toko-buku/internal/obs"
	"github.com/noah-isme/toko-buku/internal/ratelimit"
	"github.com/noah-isme/toko-buku/internal/security"
)

// NewRouter builds the HTTP surface of the pricing service.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics {
		httpMetrics := obs.NewHTTPMetrics(d.MetricsNamespace, d.MetricsBuckets, nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{Probes: d.Probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	var authMiddleware auth.Middleware
	if d.Verifier != nil {
		authMiddleware.Parser = d.Verifier
	}
	headers := security.Headers{
		Enable:             true,
		EnableHSTS:         cfg.Security.HSTSEnabled,
		HSTSMaxAge:         cfg.Security.HSTSMaxAge,
		FrameDeny:          cfg.Security.FrameDeny,
		ContentTypeNosniff: cfg.Security.ContentTypeNosniff,
		ReferrerPolicy:     cfg.Security.ReferrerPolicy,
		NoStore:            true,
	}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("quote"),
			Window: cfg.RateLimit.Window,
			Max:    cfg.RateLimit.Max,
		},
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate_limit_unavailable")
		},
	}
	checkoutHandler := checkout.NewHandler(d.Engine)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(headers.Middleware)
		v.Use(middleware.Timeout(15 * time.Second))
		v.Route("/checkout", func(c chi.Router) {
			c.Get("/shipping-policy", checkoutHandler.ShippingPolicy)
			c.With(
				limit.Middleware,
				security.BodyLimit{Max: cfg.Security.BodyLimitBytes, JSONOnly: true}.Middleware,
				authMiddleware.Authenticate,
			).Post("/quote", checkoutHandler.Quote)
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
