package handler

import (
	"encoding/json"
	"net/http"

	"floorpulse-backend/internal/events"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// ProductionHandler serves the day's department shift output log.
type ProductionHandler struct {
	Service service.DailyProductionService
	Events  events.Publisher
}

func (h ProductionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/production/daily", h.list)
}

func (h ProductionHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/production/daily", h.create)
}

func (h ProductionHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	totals := service.ShiftTotals(entries)
	var sum float64
	for _, d := range totals {
		sum += d.Total
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"departments": totals,
		"total":       sum,
	})
}

func (h ProductionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.ProductionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	entry, err := h.Service.Add(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.Events != nil {
		h.Events.Publish(events.ProductionLogged, map[string]any{
			"department": entry.Department,
			"total":      entry.Total(),
		})
	}
	writeJSON(w, http.StatusCreated, entry)
}
