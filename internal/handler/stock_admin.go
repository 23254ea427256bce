package handler

import (
	"encoding/json"
	"net/http"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// StockAdminHandler holds the stock routes that change data.
type StockAdminHandler struct {
	Service service.StockService
	Events  events.Publisher
}

func (h StockAdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stock", h.create)
	r.Delete("/stock/{id}", h.delete)
}

func (h StockAdminHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.StockInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	view, err := h.Service.Add(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.publish(view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (h StockAdminHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.publish(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h StockAdminHandler) publish(id domain.ID) {
	if h.Events != nil {
		h.Events.Publish(events.StockChanged, map[string]any{"id": id})
	}
}
