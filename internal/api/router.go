package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/unalkalkan/podcaster/internal/health"
)

// RouterConfig wires the handlers into the HTTP router
type RouterConfig struct {
	Podcasts  *PodcastHandler
	Providers *ProviderHandler
	Health    *health.Handler
	Version   string
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HealthHandler())
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, map[string]string{"name": "podcaster", "version": cfg.Version}, http.StatusOK)
		})

		r.Get("/providers", cfg.Providers.ListProviders)
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", cfg.Providers.ListProfiles)
			r.Get("/{name}", cfg.Providers.GetProfile)
		})

		r.Route("/podcasts", func(r chi.Router) {
			r.Post("/", cfg.Podcasts.CreatePodcast)
			r.Get("/{id}", cfg.Podcasts.GetManifest)
			r.Get("/{id}/audio", cfg.Podcasts.GetAudio)
			r.Get("/{id}/script", cfg.Podcasts.GetScript)
			r.Get("/{id}/download", cfg.Podcasts.Download)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
