package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/repository"
)

type apiError struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

type apiResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error,omitempty"`
}

func writeRawJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if status >= 400 {
		writeRawJSON(w, status, apiResponse{
			Status:  "error",
			Message: "",
			Data:    payload,
			Error: &apiError{
				Code:   status,
				Status: http.StatusText(status),
			},
		})
		return
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "ok",
		Message: "",
		Data:    payload,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "error",
		Message: message,
		Data:    nil,
		Error: &apiError{
			Code:   status,
			Status: http.StatusText(status),
		},
	})
}

func writeErrorWithErr(w http.ResponseWriter, status int, message string, err error) {
	if err == nil {
		writeError(w, status, message)
		return
	}
	if message == "" {
		writeError(w, status, err.Error())
		return
	}
	writeError(w, status, message+": "+err.Error())
}

// writeServiceError maps core errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var cd *domain.CooldownError
	switch {
	case errors.As(err, &cd):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(cd.Remaining.Seconds()))))
		writeRawJSON(w, http.StatusTooManyRequests, apiResponse{
			Status:  "error",
			Message: err.Error(),
			Data:    map[string]any{"id": cd.ID, "retryAfterSeconds": cd.Remaining.Seconds()},
			Error:   &apiError{Code: http.StatusTooManyRequests, Status: http.StatusText(http.StatusTooManyRequests)},
		})
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrToggleFailed),
		errors.Is(err, domain.ErrRegistrationFailed),
		errors.Is(err, domain.ErrDataUnavailable),
		errors.Is(err, domain.ErrPredictionError):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
