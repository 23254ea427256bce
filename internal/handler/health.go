package handler

import (
	"context"
	"net/http"
	"time"

	"floorpulse-backend/internal/ports"
	"github.com/go-chi/chi/v5"
)

// HealthHandler exposes readiness of the store and database.
type HealthHandler struct {
	Store ports.HealthChecker
	// DB is nil when the scan audit log is disabled.
	DB ports.HealthChecker
}

func (h HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := map[string]string{"store": "ok"}
	if err := h.Store.Health(ctx); err != nil {
		status = "degraded"
		checks["store"] = err.Error()
	}
	if h.DB != nil {
		checks["database"] = "ok"
		if err := h.DB.Health(ctx); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		}
	}

	writeRawJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}
