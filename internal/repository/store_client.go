package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"floorpulse-backend/internal/domain"
)

// ErrNotFound is returned when the store has no such record.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer from an upstream service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// StoreClient talks to the attendance/stock store over its JSON API.
type StoreClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewStoreClient builds a client with a bounded per-request timeout.
func NewStoreClient(baseURL string, timeout time.Duration) StoreClient {
	return StoreClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c StoreClient) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	var out []domain.Employee
	if err := c.do(ctx, http.MethodGet, "/api/employees", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleAttendance flips the employee between checked in and checked out.
// Statuses other than ok are returned as a result, not as an error.
func (c StoreClient) ToggleAttendance(ctx context.Context, id domain.ID) (domain.ToggleResult, error) {
	var resp struct {
		Status  string `json:"status"`
		Working bool   `json:"working"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	body := map[string]string{"id": id.String()}
	if err := c.do(ctx, http.MethodPost, "/api/attendance", body, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return domain.ToggleResult{Status: domain.ToggleUnknownUser, Message: se.Body}, nil
		}
		return domain.ToggleResult{}, err
	}
	msg := resp.Message
	if msg == "" {
		msg = resp.Error
	}
	return domain.ToggleResult{
		Status:  domain.ToggleStatus(strings.ToLower(strings.TrimSpace(resp.Status))),
		Working: resp.Working,
		Message: msg,
	}, nil
}

// AddEmployee registers a new employee and returns the store's status word.
func (c StoreClient) AddEmployee(ctx context.Context, in domain.EmployeeCandidate) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	body := map[string]any{
		"id":         in.ID.String(),
		"name":       in.Name,
		"age":        in.Age,
		"department": in.Department,
	}
	if err := c.do(ctx, http.MethodPost, "/api/add_employee", body, &resp); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(resp.Status)), nil
}

func (c StoreClient) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	var out []domain.StockItem
	if err := c.do(ctx, http.MethodGet, "/api/stock", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c StoreClient) AddStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	var out domain.StockItem
	if err := c.do(ctx, http.MethodPost, "/api/stock", item, &out); err != nil {
		return nil, err
	}
	if out.Material == "" {
		// Store answered with a status object rather than the item.
		out = item
	}
	return &out, nil
}

func (c StoreClient) DeleteStock(ctx context.Context, id domain.ID) error {
	err := c.do(ctx, http.MethodDelete, "/api/stock/"+url.PathEscape(id.String()), nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// ListDailyProduction returns the shift output logged for the store's current day.
func (c StoreClient) ListDailyProduction(ctx context.Context) ([]domain.ShiftProduction, error) {
	out := []domain.ShiftProduction{}
	if err := c.do(ctx, http.MethodGet, "/api/daily_products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c StoreClient) AddDailyProduction(ctx context.Context, p domain.ShiftProduction) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/daily_products", p, &resp); err != nil {
		return err
	}
	if status := strings.ToLower(strings.TrimSpace(resp.Status)); status != "" && status != "ok" {
		return fmt.Errorf("POST /api/daily_products: store answered %q", resp.Status)
	}
	return nil
}

// Health checks the store is reachable.
func (c StoreClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/employees", nil, nil)
}

func (c StoreClient) do(ctx context.Context, method, path string, in, out any) error {
	return doJSON(ctx, c.client(), method, c.BaseURL+path, path, in, out)
}

func (c StoreClient) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func doJSON(ctx context.Context, hc *http.Client, method, fullURL, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
