package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"floorpulse-backend/internal/config"
	"floorpulse-backend/internal/cooldown"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
	"floorpulse-backend/internal/repository"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

type fakeStore struct {
	mu      sync.Mutex
	toggles int
	emps    []domain.Employee
	stock   []domain.StockItem
	output  []domain.ShiftProduction
}

func (f *fakeStore) ToggleAttendance(_ context.Context, id domain.ID) (domain.ToggleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	if id == "404" {
		return domain.ToggleResult{Status: domain.ToggleUnknownUser}, nil
	}
	return domain.ToggleResult{Status: domain.ToggleOK, Working: true}, nil
}

func (f *fakeStore) AddEmployee(context.Context, domain.EmployeeCandidate) (string, error) {
	return "created", nil
}

func (f *fakeStore) ListEmployees(context.Context) ([]domain.Employee, error) { return f.emps, nil }

func (f *fakeStore) ListStock(context.Context) ([]domain.StockItem, error) { return f.stock, nil }

func (f *fakeStore) AddStock(_ context.Context, it domain.StockItem) (*domain.StockItem, error) {
	it.ID = "new"
	return &it, nil
}

func (f *fakeStore) DeleteStock(_ context.Context, id domain.ID) error {
	if id == "missing" {
		return repository.ErrNotFound
	}
	return nil
}

func (f *fakeStore) ListDailyProduction(context.Context) ([]domain.ShiftProduction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ShiftProduction(nil), f.output...), nil
}

func (f *fakeStore) AddDailyProduction(_ context.Context, p domain.ShiftProduction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output = append(f.output, p)
	return nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestScanRoutes(t *testing.T) {
	store := &fakeStore{}
	svc := &service.ScanService{
		Store:     store,
		Registrar: store,
		Cooldown:  cooldown.New(10*time.Second, 0, nil),
	}
	r := chi.NewRouter()
	ScanHandler{Service: svc}.RegisterRoutes(r)

	rec, env := do(t, r, http.MethodPost, "/scan", "application/json", `{"payload": "17"}`)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"working":true`) {
		t.Fatalf("first scan: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, r, http.MethodPost, "/scan", "text/plain", "17")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("repeat scan: %d %v", rec.Code, rec.Header())
	}
	if store.toggles != 1 {
		t.Fatalf("toggles = %d", store.toggles)
	}

	rec, _ = do(t, r, http.MethodPost, "/scan", "text/plain", "   ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty scan: %d", rec.Code)
	}

	rec, env = do(t, r, http.MethodPost, "/scan", "text/plain", `{"id":"404","name":"New Hire"}`)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"registration"`) {
		t.Fatalf("unknown user: %d %s", rec.Code, rec.Body.String())
	}
	_, env = do(t, r, http.MethodGet, "/registration", "", "")
	if !strings.Contains(string(env.Data), "New Hire") {
		t.Fatalf("pending prompt: %s", env.Data)
	}

	rec, env = do(t, r, http.MethodPost, "/registration", "application/json", `{"id":"404","name":"New Hire"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(string(env.Data), "department") {
		t.Fatalf("incomplete registration: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(t, r, http.MethodPost, "/registration", "application/json", `{"id":"404","name":"New Hire","age":30,"department":"Foam"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("registration: %d %s", rec.Code, rec.Body.String())
	}
	_, env = do(t, r, http.MethodGet, "/registration", "", "")
	if string(env.Data) != "null" {
		t.Fatalf("prompt should be cleared, got %s", env.Data)
	}
}

func TestStockRoutes(t *testing.T) {
	store := &fakeStore{stock: []domain.StockItem{
		{ID: "1", Material: "Foam", Quantity: 100, AvgDailyUse: 10, LeadTimeDays: 5},
		{ID: "2", Material: "Spring", Quantity: 20, AvgDailyUse: 10, LeadTimeDays: 5},
	}}
	stockSvc := service.StockService{Store: store}
	r := chi.NewRouter()
	StockHandler{Service: stockSvc}.RegisterRoutes(r)
	StockAdminHandler{Service: stockSvc}.RegisterRoutes(r)

	rec, env := do(t, r, http.MethodGet, "/stock", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list struct {
		Items        []service.StockView `json:"items"`
		ReorderCount int                 `json:"reorderCount"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.ReorderCount != 1 || list.Items[0].Material != "Foam" || list.Items[1].Status != domain.StockReorder {
		t.Fatalf("list = %+v", list)
	}

	rec, _ = do(t, r, http.MethodPost, "/stock", "application/json", `{"material":"Glue"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid add: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodPost, "/stock", "application/json", `{"material":"Glue","quantity":4,"unit":"l","avg_daily_use":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(t, r, http.MethodDelete, "/stock/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodDelete, "/stock/2", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
}

type staticPredictor struct{}

func (staticPredictor) Predict(context.Context, domain.PredictionFeatures) (domain.Prediction, error) {
	return domain.Prediction{}, nil
}

func TestDashboardRoutes(t *testing.T) {
	store := &fakeStore{stock: []domain.StockItem{{Quantity: 50}}}
	svc := &service.ProductionService{Stock: store, Employees: store, Predictor: staticPredictor{}}
	refreshed := false
	r := chi.NewRouter()
	DashboardHandler{Service: svc, Refresh: func() { refreshed = true }}.RegisterRoutes(r)

	rec, _ := do(t, r, http.MethodGet, "/dashboard", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before first pass: %d", rec.Code)
	}

	svc.Heuristics = config.DefaultHeuristics()
	if err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	rec, env := do(t, r, http.MethodGet, "/dashboard", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"predicted_completion":100`) {
		t.Fatalf("dashboard: %d %s", rec.Code, rec.Body.String())
	}
	rec, env = do(t, r, http.MethodGet, "/dashboard/stock-stats", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"efficiency":92`) {
		t.Fatalf("stock stats: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(t, r, http.MethodPost, "/dashboard/refresh", "", "")
	if rec.Code != http.StatusAccepted || !refreshed {
		t.Fatalf("refresh: %d %v", rec.Code, refreshed)
	}
}

func TestAttendanceAndBadgeRoutes(t *testing.T) {
	day := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{emps: []domain.Employee{
		{ID: "1", Name: "Asha", Age: 23, Department: "Foam",
			Attendance: []domain.AttendanceRecord{{Date: "2026-10-19", LoginTime: "08:00"}}},
		{ID: "2", Name: "Ben", Age: 35, Department: "Spring"},
	}, output: []domain.ShiftProduction{{Department: "Foam", DayShift: 120, NightShift: 80}}}
	att := &service.AttendanceService{Employees: store, Output: store, Now: func() time.Time { return day }}
	if err := att.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	r := chi.NewRouter()
	AttendanceHandler{Service: att, Now: func() time.Time { return day }}.RegisterRoutes(r)
	BadgeHandler{Attendance: att}.RegisterRoutes(r)

	rec, env := do(t, r, http.MethodGet, "/attendance/roster", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"state":"Present"`) {
		t.Fatalf("roster: %d %s", rec.Code, rec.Body.String())
	}
	rec, env = do(t, r, http.MethodGet, "/attendance/report?date=2026-10-19", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"present":1`) {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(env.Data), `{"department":"Foam","day_shift":120,"night_shift":80,"total":200}`) {
		t.Fatalf("report should carry the day's output: %s", env.Data)
	}
	rec, env = do(t, r, http.MethodGet, "/attendance/report?date=2026-10-18", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"production":[]`) {
		t.Fatalf("past report: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(t, r, http.MethodGet, "/attendance/report?date=19-10-2026", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", rec.Code)
	}

	rec, _ = do(t, r, http.MethodGet, "/attendance/report.xlsx", "", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatalf("xlsx export: %d", rec.Code)
	}
	book, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	total, err := book.GetCellValue("Production", "D2")
	if err != nil || total != "200" {
		t.Fatalf("production sheet total = %q, %v", total, err)
	}

	rec, _ = do(t, r, http.MethodGet, "/badges/1?size=128", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("badge: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	rec, _ = do(t, r, http.MethodGet, "/badges/99", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown badge: %d", rec.Code)
	}
}

type namedEvents struct {
	mu       sync.Mutex
	names    []events.Name
	payloads []any
}

func (n *namedEvents) Publish(name events.Name, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names = append(n.names, name)
	n.payloads = append(n.payloads, payload)
}

func TestProductionRoutes(t *testing.T) {
	store := &fakeStore{output: []domain.ShiftProduction{{Department: "Spring", DayShift: 30}}}
	pub := &namedEvents{}
	h := ProductionHandler{Service: service.DailyProductionService{Store: store}, Events: pub}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	h.RegisterProtectedRoutes(r)

	rec, _ := do(t, r, http.MethodPost, "/production/daily", "application/json", `{"day_shift":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing department: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodPost, "/production/daily", "application/json", `{"department":"Foam","day_shift":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative shift: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodPost, "/production/daily", "application/json", `{"department":"Foam","day_shift":120,"night_shift":80}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	if len(pub.names) != 1 || pub.names[0] != events.ProductionLogged {
		t.Fatalf("published = %v", pub.names)
	}
	raw, _ := json.Marshal(pub.payloads[0])
	if string(raw) != `{"department":"Foam","total":200}` {
		t.Fatalf("payload = %s", raw)
	}

	rec, env := do(t, r, http.MethodGet, "/production/daily", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list struct {
		Entries     []domain.ShiftProduction       `json:"entries"`
		Departments []service.DepartmentShiftTotal `json:"departments"`
		Total       float64                        `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Entries) != 2 || len(list.Departments) != 2 || list.Departments[0].Department != "Foam" || list.Total != 230 {
		t.Fatalf("list = %+v", list)
	}
}

func TestEventsStream(t *testing.T) {
	hub := events.NewHub(nil)
	r := chi.NewRouter()
	EventsHandler{Hub: hub, Heartbeat: time.Minute}.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()
	defer hub.Close()

	resp, err := http.Get(srv.URL + "/events?types=attendance.changed")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		if !lines.Scan() {
			t.Fatalf("stream ended: %v", lines.Err())
		}
		return lines.Text()
	}
	if got := next(); got != "event: connected" {
		t.Fatalf("first line = %q", got)
	}
	next() // data
	next() // blank

	hub.Publish(events.MetricsUpdated, "filtered out")
	hub.Publish(events.AttendanceChanged, map[string]any{"id": "17"})
	if got := next(); got != "event: attendance.changed" {
		t.Fatalf("event line = %q", got)
	}
	if got := next(); !strings.Contains(got, `"id":"17"`) {
		t.Fatalf("data line = %q", got)
	}
}
