package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"floorpulse-backend/internal/badge"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type BadgeHandler struct {
	Attendance *service.AttendanceService
}

func (h BadgeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/badges/{id}", h.badge)
}

func (h BadgeHandler) badge(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	emp, ok := h.Attendance.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "employee not found")
		return
	}
	size := badge.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = parsed
	}
	png, err := badge.PNG(emp, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"emp_%s.png\"", emp.ID))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
