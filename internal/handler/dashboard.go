package handler

import (
	"errors"
	"net/http"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type DashboardHandler struct {
	Service *service.ProductionService
	// Refresh asks the dashboard poller for an early run.
	Refresh func()
}

func (h DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.metrics)
	r.Get("/dashboard/stock-stats", h.stockStats)
	r.Post("/dashboard/refresh", h.refresh)
}

func (h DashboardHandler) metrics(w http.ResponseWriter, r *http.Request) {
	m, lastErr := h.Service.Current()
	if m == nil {
		msg := "dashboard metrics are not available yet"
		if lastErr != nil {
			msg += ": " + lastErr.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}
	resp := map[string]any{
		"metrics": m,
		"stale":   lastErr != nil,
	}
	if lastErr != nil {
		resp["warning"] = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h DashboardHandler) stockStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.StockStats()
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrPredictionError) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h DashboardHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if h.Refresh != nil {
		h.Refresh()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"refresh": "scheduled"})
}
