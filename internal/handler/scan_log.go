package handler

import (
	"context"
	"net/http"
	"strconv"

	"floorpulse-backend/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ScanLogReader interface {
	Recent(ctx context.Context, limit int) ([]domain.ScanEvent, error)
}

type ScanLogHandler struct {
	Log ScanLogReader
}

func (h ScanLogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/scans/recent", h.recent)
}

func (h ScanLogHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	items, err := h.Log.Recent(r.Context(), limit)
	if err != nil {
		writeErrorWithErr(w, http.StatusInternalServerError, "failed to load scan log", err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, ev := range items {
		resp = append(resp, map[string]any{
			"id":         ev.ID,
			"employeeId": ev.EmployeeID,
			"outcome":    ev.Outcome,
			"payload":    ev.Payload,
			"detail":     ev.Detail,
			"scannedAt":  ev.ScannedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
