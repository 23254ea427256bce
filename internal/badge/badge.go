// Package badge renders employee QR badges that the scan kiosk can read back.
package badge

import (
	"encoding/json"
	"fmt"

	"floorpulse-backend/internal/domain"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

type payload struct {
	ID         domain.ID `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
}

// Content is the text encoded into a badge: a JSON object with id, name and
// department, the structured form the scan ingester accepts.
func Content(e domain.Employee) (string, error) {
	b, err := json.Marshal(payload{ID: e.ID, Name: e.Name, Department: e.Department})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PNG encodes the badge for e as a square PNG of the given pixel size.
func PNG(e domain.Employee, size int) ([]byte, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("badge: employee id is required")
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}
	content, err := Content(e)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("badge: encode qr: %w", err)
	}
	return png, nil
}
