package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/riandyrn/otelchi"

	"cinecat/internal/logging"
	"cinecat/internal/metrics"
	"cinecat/internal/middleware"
)

type Options struct {
	Catalog        Catalog
	Logger         logging.Logger
	ServiceName    string
	AllowedOrigins []string
	BlockedCIDRs   []string
}

// NewRouter mounts the catalog API under /api/v1 next to /healthz and
// /metrics.
func NewRouter(opts Options) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "cinecat"
	}

	ipFilter, err := middleware.IPFilter(logger, opts.BlockedCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid blockedCIDRs: %w", err)
	}

	h := &handlers{catalog: opts.Catalog, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(otelchi.Middleware(opts.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	))
	r.Use(middleware.Metrics())
	r.Use(middleware.AccessLog(logger))
	r.Use(ipFilter)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/movies", h.movies)
		r.Get("/movies/upcoming", h.upcoming)
		r.Get("/tv", h.tv)
		r.Get("/search/{type}", h.search)
		r.Get("/details/{type}/{id}", h.details)
		r.Get("/genres/{type}", h.genres)
		r.Get("/providers", h.providers)
		r.Get("/certifications", h.certifications)
		r.Get("/people", h.people)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return r, nil
}
