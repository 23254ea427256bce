package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"floorpulse-backend/internal/domain"
)

// ErrPredictorRejected means the predictor answered but reported an error.
var ErrPredictorRejected = errors.New("predictor reported an error")

// PredictorClient calls the external production predictor.
type PredictorClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewPredictorClient(baseURL string, timeout time.Duration) PredictorClient {
	return PredictorClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Predict posts the feature vector. Transport failures, non-2xx answers,
// undecodable bodies and a non-empty error field are errors; a missing or
// non-numeric prediction is returned as an invalid Prediction.
func (c PredictorClient) Predict(ctx context.Context, f domain.PredictionFeatures) (domain.Prediction, error) {
	var resp struct {
		Prediction json.RawMessage `json:"prediction"`
		Error      string          `json:"error"`
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	body := map[string]any{"features": f}
	if err := doJSON(ctx, hc, http.MethodPost, c.BaseURL+"/api/predict", "/api/predict", body, &resp); err != nil {
		return domain.Prediction{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return domain.Prediction{}, errors.Join(ErrPredictorRejected, errors.New(msg))
	}
	v, ok := parsePrediction(resp.Prediction)
	return domain.Prediction{Value: v, Valid: ok}, nil
}

// parsePrediction accepts a number, a numeric string, or a non-empty array
// whose first element is one of those.
func parsePrediction(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return numeric(v)
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return numeric(t[0])
	default:
		return 0, false
	}
}
