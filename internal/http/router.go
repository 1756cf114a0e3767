package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/campustools/gridcal/internal/api"
	"github.com/campustools/gridcal/internal/auth"
	"github.com/campustools/gridcal/internal/config"
	"github.com/campustools/gridcal/internal/http/ratelimit"
	"github.com/campustools/gridcal/internal/metrics"
	"github.com/campustools/gridcal/internal/store"
)

// NewRouter wires all HTTP routes: health probes, the JSON API and the
// public ICS feed.
func NewRouter(cfg *config.Config, store *store.Store, authService *auth.Service, runner api.Runner, zone *time.Location) http.Handler {
	r := chi.NewRouter()

	// Mutating endpoints: 5 requests per second, burst of 10
	writeRateLimiter := ratelimit.New(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Feed endpoint: 20 requests per second, burst of 50 (calendar apps poll aggressively)
	feedRateLimiter := ratelimit.New(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	apiHandler := api.NewHandler(cfg, store, runner, zone)

	r.Route("/api", func(r chi.Router) {
		if len(cfg.AllowedOrigins) > 0 {
			r.Use(cors.New(cors.Options{
				AllowedOrigins:   cfg.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Api-Key"},
				AllowCredentials: true,
			}).Handler)
		}

		r.Get("/courses", apiHandler.ListCourses)
		r.Get("/events", apiHandler.ListEvents)

		r.With(writeRateLimiter.Middleware()).Post("/subscribers", apiHandler.CreateSubscriber)

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireSubscriber)
			r.Get("/subscribers/me", apiHandler.Me)
			r.Put("/subscribers/me/courses", apiHandler.UpdateMyCourses)
			r.Post("/subscribers/me/feed-token", apiHandler.RotateMyFeedToken)
			r.Delete("/subscribers/me", apiHandler.DeactivateMe)
			r.With(writeRateLimiter.Middleware()).Post("/subscribers/me/sync", apiHandler.SyncMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireAdmin)
			r.Post("/ingest", apiHandler.TriggerIngest)
			r.Post("/sync", apiHandler.TriggerSync)
			r.Get("/reports", apiHandler.ListReports)
			r.Get("/subscribers", apiHandler.ListSubscribers)
			r.Post("/subscribers/{id}/sync", apiHandler.SyncSubscriber)
			r.Post("/subscribers/{id}/deactivate", apiHandler.DeactivateSubscriber)
		})
	})

	// Calendar apps fetch the feed directly, outside the JSON API prefix.
	r.With(feedRateLimiter.Middleware()).Get("/feeds/{id}.ics", apiHandler.Feed)

	return r
}
