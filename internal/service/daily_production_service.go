package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"floorpulse-backend/internal/domain"
)

type DailyProductionStore interface {
	DailyProductionSource
	AddDailyProduction(ctx context.Context, p domain.ShiftProduction) error
}

// ProductionInput is a shift output form submission. Missing shifts count as 0.
type ProductionInput struct {
	Department string   `json:"department"`
	DayShift   *float64 `json:"day_shift"`
	NightShift *float64 `json:"night_shift"`
}

// DepartmentShiftTotal is one department's output for the day.
type DepartmentShiftTotal struct {
	Department string  `json:"department"`
	DayShift   float64 `json:"day_shift"`
	NightShift float64 `json:"night_shift"`
	Total      float64 `json:"total"`
}

// DailyProductionService logs department shift output with the store.
type DailyProductionService struct {
	Store DailyProductionStore
}

func (s DailyProductionService) List(ctx context.Context) ([]domain.ShiftProduction, error) {
	entries, err := s.Store.ListDailyProduction(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: daily production: %v", domain.ErrDataUnavailable, err)
	}
	if entries == nil {
		entries = []domain.ShiftProduction{}
	}
	return entries, nil
}

// NormalizeProduction validates a submission.
func NormalizeProduction(in ProductionInput) (domain.ShiftProduction, error) {
	var missing []string
	dept := strings.TrimSpace(in.Department)
	if dept == "" {
		missing = append(missing, "department")
	}
	day, ok := shiftValue(in.DayShift)
	if !ok {
		missing = append(missing, "day_shift")
	}
	night, ok := shiftValue(in.NightShift)
	if !ok {
		missing = append(missing, "night_shift")
	}
	if len(missing) > 0 {
		return domain.ShiftProduction{}, &domain.ValidationError{Fields: missing}
	}
	return domain.ShiftProduction{Department: dept, DayShift: day, NightShift: night}, nil
}

func shiftValue(v *float64) (float64, bool) {
	if v == nil {
		return 0, true
	}
	if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func (s DailyProductionService) Add(ctx context.Context, in ProductionInput) (domain.ShiftProduction, error) {
	p, err := NormalizeProduction(in)
	if err != nil {
		return domain.ShiftProduction{}, err
	}
	if err := s.Store.AddDailyProduction(ctx, p); err != nil {
		return domain.ShiftProduction{}, fmt.Errorf("%w: daily production: %v", domain.ErrDataUnavailable, err)
	}
	return p, nil
}

// ShiftTotals folds entries into one row per department, sorted by name.
func ShiftTotals(entries []domain.ShiftProduction) []DepartmentShiftTotal {
	idx := map[string]int{}
	out := make([]DepartmentShiftTotal, 0)
	for _, p := range entries {
		dept := strings.TrimSpace(p.Department)
		if dept == "" {
			dept = "Unassigned"
		}
		i, ok := idx[dept]
		if !ok {
			i = len(out)
			idx[dept] = i
			out = append(out, DepartmentShiftTotal{Department: dept})
		}
		out[i].DayShift += p.DayShift
		out[i].NightShift += p.NightShift
		out[i].Total += p.Total()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}
