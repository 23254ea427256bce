package handler

import (
	"net/http"
	"strings"
	"time"

	"floorpulse-backend/internal/domain"
)

// parseDateQuery reads an optional YYYY-MM-DD query value.
func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
