package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jeffas/bwfs/internal/middleware"
)

// NewRouter builds the control API handler.
//
// Routes:
//
//	GET  /api/status   → VaultHandler.Status
//	POST /api/unlock   → VaultHandler.Unlock
//	POST /api/refresh  → VaultHandler.Refresh
//	POST /api/lock     → VaultHandler.Lock
func NewRouter(h *VaultHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Reject non-JSON bodies; requests without a body pass through.
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/unlock", h.Unlock)
		r.Post("/refresh", h.Refresh)
		r.Post("/lock", h.Lock)
	})

	return r
}
