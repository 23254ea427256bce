package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"floorpulse-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var clockLayouts = []string{"15:04:05", "15:04"}

// DeriveState maps an employee's history to the attendance state for day.
func DeriveState(e domain.Employee, day time.Time) domain.AttendanceState {
	rec, ok := e.RecordFor(domain.DayKey(day))
	return stateOf(rec, ok)
}

func stateOf(rec domain.AttendanceRecord, ok bool) domain.AttendanceState {
	switch {
	case !ok || rec.LoginTime == "":
		return domain.AttendanceAbsent
	case rec.LogoutTime == "":
		return domain.AttendancePresent
	default:
		return domain.AttendanceCheckedOut
	}
}

// WorkDuration returns logout minus login in hours, rounded to two places.
// ok is false when either time is missing or unparsable, or the pair is inverted.
func WorkDuration(rec domain.AttendanceRecord) (decimal.Decimal, bool) {
	if rec.LoginTime == "" || rec.LogoutTime == "" {
		return decimal.Zero, false
	}
	in, err := parseClock(rec.LoginTime)
	if err != nil {
		return decimal.Zero, false
	}
	out, err := parseClock(rec.LogoutTime)
	if err != nil {
		return decimal.Zero, false
	}
	if out < in {
		return decimal.Zero, false
	}
	secs := decimal.NewFromInt(int64((out - in) / time.Second))
	return secs.Div(decimal.NewFromInt(3600)).Round(2), true
}

// FormatDuration renders WorkDuration as "8.50", or "-" when undefined.
func FormatDuration(rec domain.AttendanceRecord) string {
	d, ok := WorkDuration(rec)
	if !ok {
		return "-"
	}
	return d.StringFixed(2)
}

// parseClock returns the offset of a wall-clock time from midnight.
func parseClock(s string) (time.Duration, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", s)
}

// BuildRoster derives every employee's state for day, ordered by name.
func BuildRoster(emps []domain.Employee, day time.Time) []domain.RosterEntry {
	key := domain.DayKey(day)
	out := make([]domain.RosterEntry, 0, len(emps))
	for _, e := range emps {
		rec, ok := e.RecordFor(key)
		entry := domain.RosterEntry{Employee: e, State: stateOf(rec, ok), Duration: "-"}
		if ok {
			r := rec
			entry.Record = &r
			entry.Duration = FormatDuration(rec)
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Employee.Name == out[j].Employee.Name {
			return out[i].Employee.ID < out[j].Employee.ID
		}
		return out[i].Employee.Name < out[j].Employee.Name
	})
	return out
}

// EmployeeSource lists the employee roster with attendance history.
type EmployeeSource interface {
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
}

// AttendanceService keeps the latest employee snapshot for roster views.
type AttendanceService struct {
	Employees EmployeeSource
	Output    DailyProductionSource
	Now       func() time.Time

	mu        sync.RWMutex
	snapshot  []domain.Employee
	fetchedAt time.Time
	lastErr   error
}

// Fetch loads a fresh roster snapshot without installing it.
func (s *AttendanceService) Fetch(ctx context.Context) ([]domain.Employee, error) {
	emps, err := s.Employees.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: employees: %v", domain.ErrDataUnavailable, err)
	}
	return emps, nil
}

// Apply installs a snapshot.
func (s *AttendanceService) Apply(emps []domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = emps
	s.fetchedAt = s.now()
	s.lastErr = nil
}

// Fail records a failed refresh; the previous snapshot stays in place.
func (s *AttendanceService) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// Refresh fetches and applies in one call.
func (s *AttendanceService) Refresh(ctx context.Context) error {
	emps, err := s.Fetch(ctx)
	if err != nil {
		s.Fail(err)
		return err
	}
	s.Apply(emps)
	return nil
}

// Snapshot returns the current employees, when they were fetched, and the
// last refresh error if the snapshot is stale.
func (s *AttendanceService) Snapshot() ([]domain.Employee, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Employee, len(s.snapshot))
	copy(out, s.snapshot)
	return out, s.fetchedAt, s.lastErr
}

// Lookup finds an employee in the current snapshot.
func (s *AttendanceService) Lookup(id domain.ID) (domain.Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.snapshot {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Employee{}, false
}

// Roster derives today's states from the current snapshot.
func (s *AttendanceService) Roster() []domain.RosterEntry {
	emps, _, _ := s.Snapshot()
	return BuildRoster(emps, s.now())
}

// DailyReport summarises attendance for day from the current snapshot.
func (s *AttendanceService) DailyReport(day time.Time) domain.DailyReport {
	emps, _, _ := s.Snapshot()
	entries := BuildRoster(emps, day)
	rep := domain.DailyReport{
		Date:        domain.DayKey(day),
		Total:       len(entries),
		Entries:     entries,
		GeneratedAt: s.now(),
	}
	for _, e := range entries {
		switch e.State {
		case domain.AttendancePresent:
			rep.Present++
		case domain.AttendanceCheckedOut:
			rep.CheckedOut++
		default:
			rep.Absent++
		}
	}
	return rep
}

// Report is DailyReport plus the shift output logged for day. The store only
// keeps a log for the current day, so other days carry no output. When the
// log cannot be read the attendance part is still returned with the error.
func (s *AttendanceService) Report(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	rep := s.DailyReport(day)
	rep.Production = []domain.ShiftProduction{}
	if s.Output == nil || rep.Date != domain.DayKey(s.now()) {
		return rep, nil
	}
	output, err := s.Output.ListDailyProduction(ctx)
	if err != nil {
		return rep, fmt.Errorf("%w: daily production: %v", domain.ErrDataUnavailable, err)
	}
	if output != nil {
		rep.Production = output
	}
	return rep, nil
}

func (s *AttendanceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
