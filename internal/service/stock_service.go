package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"floorpulse-backend/internal/domain"
)

const defaultStockCategory = "General"

// RemainingAfterLeadTime is the quantity left once the restock lead time has
// elapsed at the average daily usage. A lead time <= 0 counts as one day.
func RemainingAfterLeadTime(it domain.StockItem) float64 {
	lead := it.LeadTimeDays
	if lead <= 0 {
		lead = 1
	}
	return it.Quantity - it.AvgDailyUse*float64(lead)
}

// ReorderStatus flags items that run out before the next restock arrives.
func ReorderStatus(it domain.StockItem) domain.StockStatus {
	if RemainingAfterLeadTime(it) < 0 {
		return domain.StockReorder
	}
	return domain.StockOK
}

type StockView struct {
	domain.StockItem
	RemainingAfterLeadTime float64            `json:"remaining_after_lead_time"`
	Status                 domain.StockStatus `json:"status"`
}

// EvaluateStock attaches reorder status and sorts by quantity, largest first.
func EvaluateStock(items []domain.StockItem) []StockView {
	out := make([]StockView, 0, len(items))
	for _, it := range items {
		out = append(out, StockView{
			StockItem:              it,
			RemainingAfterLeadTime: RemainingAfterLeadTime(it),
			Status:                 ReorderStatus(it),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	return out
}

// StockInput is a stock form submission. Pointers distinguish a missing
// number from an explicit zero.
type StockInput struct {
	Material     string   `json:"material"`
	Category     string   `json:"category"`
	Quantity     *float64 `json:"quantity"`
	Unit         string   `json:"unit"`
	AvgDailyUse  *float64 `json:"avg_daily_use"`
	LeadTimeDays *int     `json:"lead_time_days"`
	DemandTrend  *float64 `json:"demand_trend"`
	LastRestock  string   `json:"last_restock"`
}

type StockStore interface {
	ListStock(ctx context.Context) ([]domain.StockItem, error)
	AddStock(ctx context.Context, item domain.StockItem) (*domain.StockItem, error)
	DeleteStock(ctx context.Context, id domain.ID) error
}

// StockService proxies stock maintenance to the store.
type StockService struct {
	Store StockStore
	Now   func() time.Time
}

func (s StockService) List(ctx context.Context) ([]StockView, error) {
	items, err := s.Store.ListStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stock: %v", domain.ErrDataUnavailable, err)
	}
	return EvaluateStock(items), nil
}

// Normalize validates required fields and fills form defaults.
func (s StockService) Normalize(in StockInput) (domain.StockItem, error) {
	var missing []string
	material := strings.TrimSpace(in.Material)
	unit := strings.TrimSpace(in.Unit)
	if material == "" {
		missing = append(missing, "material")
	}
	if in.Quantity == nil || *in.Quantity < 0 {
		missing = append(missing, "quantity")
	}
	if unit == "" {
		missing = append(missing, "unit")
	}
	if in.AvgDailyUse == nil || *in.AvgDailyUse < 0 {
		missing = append(missing, "avg_daily_use")
	}
	if len(missing) > 0 {
		return domain.StockItem{}, &domain.ValidationError{Fields: missing}
	}

	item := domain.StockItem{
		Material:     material,
		Category:     strings.TrimSpace(in.Category),
		Quantity:     *in.Quantity,
		Unit:         unit,
		AvgDailyUse:  *in.AvgDailyUse,
		LeadTimeDays: 1,
		DemandTrend:  1.0,
		LastRestock:  strings.TrimSpace(in.LastRestock),
	}
	if item.Category == "" {
		item.Category = defaultStockCategory
	}
	if in.LeadTimeDays != nil && *in.LeadTimeDays > 0 {
		item.LeadTimeDays = domain.Whole(*in.LeadTimeDays)
	}
	if in.DemandTrend != nil {
		item.DemandTrend = *in.DemandTrend
	}
	if item.LastRestock == "" {
		item.LastRestock = domain.DayKey(s.now())
	}
	return item, nil
}

func (s StockService) Add(ctx context.Context, in StockInput) (StockView, error) {
	item, err := s.Normalize(in)
	if err != nil {
		return StockView{}, err
	}
	saved, err := s.Store.AddStock(ctx, item)
	if err != nil {
		return StockView{}, err
	}
	return StockView{
		StockItem:              *saved,
		RemainingAfterLeadTime: RemainingAfterLeadTime(*saved),
		Status:                 ReorderStatus(*saved),
	}, nil
}

func (s StockService) Delete(ctx context.Context, id domain.ID) error {
	if strings.TrimSpace(id.String()) == "" {
		return &domain.ValidationError{Fields: []string{"id"}}
	}
	return s.Store.DeleteStock(ctx, id)
}

func (s StockService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
