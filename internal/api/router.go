package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cube-demo/internal/middleware"
)

// RouterConfig controls the middleware applied around the API routes.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// NewRouter wires the API handler into a chi router with the standard
// middleware stack. The UI handler, when non-nil, is mounted at the root.
func NewRouter(h *Handler, ui http.Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		}))
	}

	r.Get("/healthz", h.getHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dimensions", h.getDimensions)
		r.Get("/dimensions/values", h.getDimensionValues)
		r.Get("/metrics", h.getMetrics)
		r.Get("/computed-metrics", h.getComputedMetrics)
		r.Get("/queries", h.getQueries)
		r.Get("/queries/{name}", h.getQuery)
		r.Post("/queries/{name}/run", h.runQuery)
		r.Get("/filters/{state}", h.getFilters)
		r.Put("/filters/{state}", h.putFilters)
		r.Delete("/filters/{state}", h.deleteFilters)
	})

	if ui != nil {
		r.Mount("/", ui)
	}
	return r
}
