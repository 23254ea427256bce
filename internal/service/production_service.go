package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"floorpulse-backend/internal/config"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
	"golang.org/x/sync/errgroup"
)

const (
	BandGreen  = "green"
	BandOrange = "orange"
	BandRed    = "red"
)

type StockSource interface {
	ListStock(ctx context.Context) ([]domain.StockItem, error)
}

// DailyProductionSource lists the shift output logged for the current day.
type DailyProductionSource interface {
	ListDailyProduction(ctx context.Context) ([]domain.ShiftProduction, error)
}

type Predictor interface {
	Predict(ctx context.Context, f domain.PredictionFeatures) (domain.Prediction, error)
}

// MetricsObserver receives every freshly applied metrics snapshot.
type MetricsObserver interface {
	ObserveMetrics(m domain.DashboardMetrics)
}

// StockTotals returns the summed quantity and the mean per item.
func StockTotals(stock []domain.StockItem) (total, avg float64) {
	for _, it := range stock {
		total += it.Quantity
	}
	if len(stock) > 0 {
		avg = total / float64(len(stock))
	}
	return total, avg
}

// CountPresent counts employees whose derived state for day is Present.
func CountPresent(emps []domain.Employee, day time.Time) int {
	n := 0
	for _, e := range emps {
		if DeriveState(e, day) == domain.AttendancePresent {
			n++
		}
	}
	return n
}

// BuildFeatures assembles the predictor input from the floor totals.
func BuildFeatures(total, avg float64, present int, h config.Heuristics) domain.PredictionFeatures {
	eff := h.UnstaffedEfficiency
	if present > 0 {
		eff = h.StaffedEfficiency
	}
	return domain.PredictionFeatures{
		CustomerOrder:   total,
		Efficiency:      eff,
		CycleTimeMin:    avg,
		Manpower:        present,
		FoamAvailable:   total,
		SpringAvailable: total,
	}
}

// AgeGroup labels the decade an age falls into, e.g. 23 -> "20s".
func AgeGroup(age int) string {
	if age < 0 {
		age = 0
	}
	return strconv.Itoa(age/10*10) + "s"
}

// AgeSummary buckets employees by decade, ascending.
func AgeSummary(emps []domain.Employee, day time.Time) []domain.AgeBucket {
	type acc struct{ decade, total, working int }
	buckets := map[int]*acc{}
	for _, e := range emps {
		age := int(e.Age)
		if age < 0 {
			age = 0
		}
		decade := age / 10 * 10
		b, ok := buckets[decade]
		if !ok {
			b = &acc{decade: decade}
			buckets[decade] = b
		}
		b.total++
		if DeriveState(e, day) == domain.AttendancePresent {
			b.working++
		}
	}

	ordered := make([]*acc, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].decade < ordered[j].decade })

	out := make([]domain.AgeBucket, 0, len(ordered))
	for _, b := range ordered {
		eff := 0
		if b.total > 0 {
			eff = int(math.Round(float64(b.working) / float64(b.total) * 100))
		}
		out = append(out, domain.AgeBucket{
			AgeGroup:   AgeGroup(b.decade),
			Total:      b.total,
			Working:    b.working,
			Efficiency: eff,
		})
	}
	return out
}

// DepartmentBreakdown counts staff and present staff per department.
func DepartmentBreakdown(emps []domain.Employee, day time.Time) []domain.DepartmentSummary {
	idx := map[string]int{}
	out := make([]domain.DepartmentSummary, 0)
	for _, e := range emps {
		dept := e.Department
		if dept == "" {
			dept = "Unassigned"
		}
		i, ok := idx[dept]
		if !ok {
			i = len(out)
			idx[dept] = i
			out = append(out, domain.DepartmentSummary{Department: dept})
		}
		out[i].Total++
		if DeriveState(e, day) == domain.AttendancePresent {
			out[i].Working++
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// DepartmentOutput adds each department's logged output for the day (day
// plus night shift) and its share of the plant target, split by headcount.
// Departments that logged output without any staff on the roster are added.
func DepartmentOutput(summary []domain.DepartmentSummary, output []domain.ShiftProduction, target float64) []domain.DepartmentSummary {
	out := make([]domain.DepartmentSummary, len(summary))
	copy(out, summary)
	idx := make(map[string]int, len(out))
	for i, d := range out {
		idx[d.Department] = i
	}
	for dept, total := range OutputByDepartment(output) {
		i, ok := idx[dept]
		if !ok {
			i = len(out)
			idx[dept] = i
			out = append(out, domain.DepartmentSummary{Department: dept})
		}
		out[i].Achieved = round1(total)
	}

	staff := 0
	for _, d := range out {
		staff += d.Total
	}
	for i := range out {
		switch {
		case staff > 0:
			out[i].Target = round1(target * float64(out[i].Total) / float64(staff))
		case len(out) > 0:
			out[i].Target = round1(target / float64(len(out)))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// OutputByDepartment sums day and night shift output per department.
func OutputByDepartment(output []domain.ShiftProduction) map[string]float64 {
	totals := make(map[string]float64)
	for _, p := range output {
		dept := strings.TrimSpace(p.Department)
		if dept == "" {
			dept = "Unassigned"
		}
		totals[dept] += p.Total()
	}
	return totals
}

// EfficiencyBand maps an efficiency percentage to its dashboard colour.
func EfficiencyBand(eff float64) string {
	switch {
	case eff >= 90:
		return BandGreen
	case eff >= 70:
		return BandOrange
	default:
		return BandRed
	}
}

// Aggregate derives dashboard metrics from snapshots and one prediction.
func Aggregate(stock []domain.StockItem, emps []domain.Employee, pred domain.Prediction, day time.Time, h config.Heuristics) domain.DashboardMetrics {
	total, _ := StockTotals(stock)
	present := CountPresent(emps, day)

	predicted := pred.Value
	if !pred.Valid {
		predicted = total * h.FallbackMultiplier
	}
	m := domain.DashboardMetrics{
		PredictedCompletion: predicted,
		ActualCompletion:    predicted * h.ActualFactor,
		TargetCompletion:    predicted * h.TargetFactor,
		AvailableComponents: total,
		NumWorkersPresent:   present,
		WorkHours:           float64(present) * h.ShiftHours,
		AgeSummary:          AgeSummary(emps, day),
		DepartmentSummary:   DepartmentBreakdown(emps, day),
		PredictionFallback:  !pred.Valid,
		ComputedAt:          day,
	}
	if m.PredictedCompletion > 0 {
		m.Efficiency = round1(m.ActualCompletion / m.PredictedCompletion * 100)
	}
	if m.TargetCompletion > 0 {
		m.TargetAchieved = round1(m.ActualCompletion / m.TargetCompletion * 100)
	}
	m.EfficiencyBand = EfficiencyBand(m.Efficiency)
	return m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ProductionService recomputes the production dashboard and keeps the last
// good metrics when a pass fails.
type ProductionService struct {
	Stock      StockSource
	Employees  EmployeeSource
	Predictor  Predictor
	Output     DailyProductionSource // optional
	Heuristics config.Heuristics
	Events     events.Publisher
	Observer   MetricsObserver
	Logger     *slog.Logger
	Now        func() time.Time

	mu      sync.RWMutex
	current *domain.DashboardMetrics
	lastErr error
}

// Compute runs one aggregation pass without touching the held metrics.
func (s *ProductionService) Compute(ctx context.Context) (domain.DashboardMetrics, error) {
	var (
		stock  []domain.StockItem
		emps   []domain.Employee
		output []domain.ShiftProduction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = s.Stock.ListStock(gctx)
		if err != nil {
			return fmt.Errorf("stock: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		emps, err = s.Employees.ListEmployees(gctx)
		if err != nil {
			return fmt.Errorf("employees: %w", err)
		}
		return nil
	})
	if s.Output != nil {
		g.Go(func() error {
			var err error
			output, err = s.Output.ListDailyProduction(gctx)
			if err != nil {
				// Missing output only blanks the achieved column.
				s.logger().Warn("daily production unavailable", "err", err)
				output = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	now := s.now()
	total, avg := StockTotals(stock)
	features := BuildFeatures(total, avg, CountPresent(emps, now), s.Heuristics)
	pred, err := s.Predictor.Predict(ctx, features)
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("%w: %v", domain.ErrPredictionError, err)
	}
	if !pred.Valid {
		s.logger().Debug("predictor returned no usable value, using fallback", "available_components", total)
	}
	m := Aggregate(stock, emps, pred, now, s.Heuristics)
	m.DepartmentSummary = DepartmentOutput(m.DepartmentSummary, output, m.TargetCompletion)
	return m, nil
}

// Apply installs freshly computed metrics.
func (s *ProductionService) Apply(m domain.DashboardMetrics) {
	s.mu.Lock()
	s.current = &m
	s.lastErr = nil
	s.mu.Unlock()

	if s.Observer != nil {
		s.Observer.ObserveMetrics(m)
	}
	if s.Events != nil {
		s.Events.Publish(events.MetricsUpdated, m)
	}
}

// Fail keeps the previous metrics and records why they are stale.
func (s *ProductionService) Fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.logger().Warn("production metrics refresh failed", "err", err)
	if s.Events != nil {
		s.Events.Publish(events.MetricsStale, map[string]any{"error": err.Error()})
	}
}

// Recompute is Compute followed by Apply or Fail.
func (s *ProductionService) Recompute(ctx context.Context) error {
	m, err := s.Compute(ctx)
	if err != nil {
		s.Fail(err)
		return err
	}
	s.Apply(m)
	return nil
}

// Current returns the last good metrics, or nil before the first success,
// together with the error of the latest failed pass.
func (s *ProductionService) Current() (*domain.DashboardMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, s.lastErr
	}
	m := *s.current
	return &m, s.lastErr
}

// StockStats is the compact production summary.
type StockStats struct {
	PredictedCompletion float64 `json:"predicted_completion"`
	ActualCompletion    float64 `json:"actual_completion"`
	Efficiency          float64 `json:"efficiency"`
}

func (s *ProductionService) StockStats() (StockStats, error) {
	m, err := s.Current()
	if m == nil {
		if err == nil {
			err = domain.ErrDataUnavailable
		}
		return StockStats{}, err
	}
	return StockStats{
		PredictedCompletion: m.PredictedCompletion,
		ActualCompletion:    m.ActualCompletion,
		Efficiency:          m.Efficiency,
	}, nil
}

func (s *ProductionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ProductionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
