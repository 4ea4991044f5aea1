package main

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mygeslike/api/internal/api"
	apiMiddleware "github.com/mygeslike/api/internal/api/middleware"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/service/auth"
)

// newRouter mounts the API under /api next to /health and /metrics. When
// uploadsDir is set, project subjects stored on disk are served from
// /uploads/projects; deliverable archives only go out through the
// authenticated download route.
func newRouter(log *slog.Logger, handlers *api.Handlers, jwtService auth.JWTService, uploadsDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(log))

	authMiddleware := apiMiddleware.NewAuthMiddleware(jwtService)
	r.Route("/api", func(r chi.Router) {
		handlers.Routes(r, authMiddleware.Authenticate)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	if uploadsDir != "" {
		prefix := "/uploads/" + storage.FolderProjects + "/"
		dir := http.Dir(filepath.Join(uploadsDir, storage.FolderProjects))
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(dir)))
	}

	return r
}
