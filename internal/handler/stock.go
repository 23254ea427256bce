package handler

import (
	"net/http"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type StockHandler struct {
	Service service.StockService
}

func (h StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stock", h.list)
}

func (h StockHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	reorder := 0
	for _, it := range items {
		if it.Status == domain.StockReorder {
			reorder++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":        items,
		"reorderCount": reorder,
	})
}
