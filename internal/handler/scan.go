package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxScanBody = 4 << 10

type ScanHandler struct {
	Service *service.ScanService
}

func (h ScanHandler) RegisterRoutes(r chi.Router) {
	r.Post("/scan", h.scan)
	r.Get("/registration", h.pending)
	r.Post("/registration", h.register)
	r.Delete("/registration", h.dismiss)
}

// scan accepts {"payload": "<decoded qr text>"} as JSON, or the decoded text
// itself as the request body.
func (h ScanHandler) scan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	raw := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Payload *string `json:"payload"`
		}
		if err := json.Unmarshal(body, &req); err == nil && req.Payload != nil {
			raw = *req.Payload
		}
	}

	res, err := h.Service.Ingest(r.Context(), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{
		"outcome": res.Outcome,
		"id":      res.EmployeeID,
	}
	switch res.Outcome {
	case domain.ScanToggled:
		resp["working"] = res.Working
	case domain.ScanUnknownUser:
		resp["registration"] = promptJSON(res.Prompt)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ScanHandler) pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, promptJSON(h.Service.PendingRegistration()))
}

func (h ScanHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         domain.ID `json:"id"`
		Name       string    `json:"name"`
		Age        int       `json:"age"`
		Department string    `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.Service.Register(r.Context(), domain.EmployeeCandidate{
		ID:         req.ID,
		Name:       req.Name,
		Age:        req.Age,
		Department: req.Department,
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"missing": ve.Fields})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID, "status": "created"})
}

func (h ScanHandler) dismiss(w http.ResponseWriter, r *http.Request) {
	h.Service.DismissRegistration()
	w.WriteHeader(http.StatusNoContent)
}

func promptJSON(p *domain.RegistrationPrompt) map[string]any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"department": p.Department,
		"raisedAt":   p.RaisedAt,
	}
}
