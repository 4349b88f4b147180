package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"weathergen/internal/api/handler"
	"weathergen/internal/app/service"
	"weathergen/internal/platform/storage"
)

func NewRouter(jobService *service.JobService, artifactStore *storage.LocalStore) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		jobHandler := handler.NewJobHandler(jobService, artifactStore)
		v1.Route("/jobs", jobHandler.RegisterRoutes)

		artifactHandler := handler.NewArtifactHandler(artifactStore)
		v1.Route("/artifacts", artifactHandler.RegisterRoutes)
	})

	return r
}
