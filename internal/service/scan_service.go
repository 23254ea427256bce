package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"floorpulse-backend/internal/cooldown"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
)

const maxIdentifierLen = 128

type AttendanceToggler interface {
	ToggleAttendance(ctx context.Context, id domain.ID) (domain.ToggleResult, error)
}

type EmployeeRegistrar interface {
	AddEmployee(ctx context.Context, in domain.EmployeeCandidate) (string, error)
}

// ScanRecorder persists scan outcomes for auditing.
type ScanRecorder interface {
	Record(ctx context.Context, ev domain.ScanEvent) error
}

type ScanObserver interface {
	ObserveScan(outcome domain.ScanOutcome)
}

// ScanService turns decoded QR payloads into attendance toggles.
type ScanService struct {
	Store     AttendanceToggler
	Registrar EmployeeRegistrar
	Cooldown  *cooldown.Cache
	Events    events.Publisher
	Recorder  ScanRecorder
	Observer  ScanObserver
	Logger    *slog.Logger
	Now       func() time.Time

	mu      sync.Mutex
	pending *domain.RegistrationPrompt
}

// ParsePayload accepts a bare identifier, a JSON string or number, or a JSON
// object carrying at least an id.
func ParsePayload(raw string) (domain.ScanPayload, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.ScanPayload{}, fmt.Errorf("%w: empty", domain.ErrInvalidPayload)
	}

	switch text[0] {
	case '{':
		var obj struct {
			ID         *domain.ID `json:"id"`
			Name       string     `json:"name"`
			Department string     `json:"department"`
		}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return domain.ScanPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		if obj.ID == nil || *obj.ID == "" {
			return domain.ScanPayload{}, fmt.Errorf("%w: missing id", domain.ErrInvalidPayload)
		}
		if err := checkIdentifier(string(*obj.ID)); err != nil {
			return domain.ScanPayload{}, err
		}
		return domain.ScanPayload{
			ID:         *obj.ID,
			Name:       strings.TrimSpace(obj.Name),
			Department: strings.TrimSpace(obj.Department),
		}, nil
	case '"':
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return domain.ScanPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		s = strings.TrimSpace(s)
		if err := checkIdentifier(s); err != nil {
			return domain.ScanPayload{}, err
		}
		return domain.ScanPayload{ID: domain.ID(s)}, nil
	case '[':
		return domain.ScanPayload{}, fmt.Errorf("%w: unexpected array", domain.ErrInvalidPayload)
	}

	if err := checkIdentifier(text); err != nil {
		return domain.ScanPayload{}, err
	}
	return domain.ScanPayload{ID: domain.ID(text)}, nil
}

func checkIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty identifier", domain.ErrInvalidPayload)
	}
	if len(s) > maxIdentifierLen {
		return fmt.Errorf("%w: identifier too long", domain.ErrInvalidPayload)
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: identifier contains %q", domain.ErrInvalidPayload, r)
		}
	}
	return nil
}

// Ingest handles one decoded scan. At most one toggle request is sent, and
// only when the identifier is outside its cooldown window.
func (s *ScanService) Ingest(ctx context.Context, raw string) (domain.ScanResult, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		s.finish(ctx, raw, "", domain.ScanInvalid, err)
		return domain.ScanResult{Outcome: domain.ScanInvalid}, err
	}

	if remaining, ok := s.Cooldown.Acquire(payload.ID.String()); !ok {
		err := &domain.CooldownError{ID: payload.ID, Remaining: remaining}
		s.finish(ctx, raw, payload.ID, domain.ScanCooldown, err)
		return domain.ScanResult{Outcome: domain.ScanCooldown, EmployeeID: payload.ID}, err
	}

	res, err := s.Store.ToggleAttendance(ctx, payload.ID)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrToggleFailed, err)
		s.finish(ctx, raw, payload.ID, domain.ScanFailed, err)
		return domain.ScanResult{Outcome: domain.ScanFailed, EmployeeID: payload.ID}, err
	}

	switch res.Status {
	case domain.ToggleOK:
		result := domain.ScanResult{Outcome: domain.ScanToggled, EmployeeID: payload.ID, Working: res.Working}
		if s.Events != nil {
			s.Events.Publish(events.AttendanceChanged, map[string]any{
				"outcome": result.Outcome,
				"id":      result.EmployeeID,
				"working": result.Working,
			})
		}
		s.finish(ctx, raw, payload.ID, domain.ScanToggled, nil)
		return result, nil
	case domain.ToggleUnknownUser:
		prompt := &domain.RegistrationPrompt{
			ID:         payload.ID,
			Name:       payload.Name,
			Department: payload.Department,
			RaisedAt:   s.now(),
		}
		s.mu.Lock()
		s.pending = prompt
		s.mu.Unlock()
		s.finish(ctx, raw, payload.ID, domain.ScanUnknownUser, nil)
		p := *prompt
		return domain.ScanResult{Outcome: domain.ScanUnknownUser, EmployeeID: payload.ID, Prompt: &p}, nil
	default:
		detail := res.Message
		if detail == "" {
			detail = "status " + string(res.Status)
		}
		err := fmt.Errorf("%w: %s", domain.ErrToggleFailed, detail)
		s.finish(ctx, raw, payload.ID, domain.ScanFailed, err)
		return domain.ScanResult{Outcome: domain.ScanFailed, EmployeeID: payload.ID}, err
	}
}

// PendingRegistration returns the open registration prompt, if any.
func (s *ScanService) PendingRegistration() *domain.RegistrationPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// DismissRegistration drops the open prompt without registering anyone.
func (s *ScanService) DismissRegistration() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// ValidateCandidate checks required fields locally.
func ValidateCandidate(c domain.EmployeeCandidate) error {
	var missing []string
	if strings.TrimSpace(c.ID.String()) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if c.Age <= 0 {
		missing = append(missing, "age")
	}
	if strings.TrimSpace(c.Department) == "" {
		missing = append(missing, "department")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing}
	}
	return nil
}

// Register submits a new employee. Validation failures never reach the store.
func (s *ScanService) Register(ctx context.Context, c domain.EmployeeCandidate) error {
	c.ID = domain.ID(strings.TrimSpace(c.ID.String()))
	c.Name = strings.TrimSpace(c.Name)
	c.Department = strings.TrimSpace(c.Department)
	if err := ValidateCandidate(c); err != nil {
		return err
	}

	status, err := s.Registrar.AddEmployee(ctx, c)
	if err != nil {
		s.logger().Warn("employee registration failed", "id", c.ID.String(), "err", err)
		return fmt.Errorf("%w: %v", domain.ErrRegistrationFailed, err)
	}
	if status != "created" {
		s.logger().Warn("employee registration rejected", "id", c.ID.String(), "status", status)
		return fmt.Errorf("%w: store answered %q", domain.ErrRegistrationFailed, status)
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	if s.Events != nil {
		s.Events.Publish(events.EmployeeRegistered, map[string]any{
			"id":         c.ID,
			"name":       c.Name,
			"age":        c.Age,
			"department": c.Department,
		})
	}
	s.logger().Info("employee registered", "id", c.ID.String(), "department", c.Department)
	return nil
}

func (s *ScanService) finish(ctx context.Context, raw string, id domain.ID, outcome domain.ScanOutcome, err error) {
	if s.Observer != nil {
		s.Observer.ObserveScan(outcome)
	}

	log := s.logger().With("outcome", string(outcome), "id", id.String())
	var cd *domain.CooldownError
	switch {
	case err == nil:
		log.Info("scan handled")
	case errors.As(err, &cd):
		log.Debug("scan suppressed", "remaining", cd.Remaining)
	default:
		log.Warn("scan rejected", "err", err)
	}

	if s.Recorder == nil {
		return
	}
	ev := domain.ScanEvent{
		EmployeeID: id.String(),
		Outcome:    outcome,
		Payload:    truncate(raw, 512),
		ScannedAt:  s.now(),
	}
	if err != nil {
		ev.Detail = truncate(err.Error(), 1024)
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if recErr := s.Recorder.Record(recCtx, ev); recErr != nil {
		s.logger().Warn("failed to record scan event", "err", recErr)
	}
}

func (s *ScanService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ScanService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// truncate cuts s to at most n bytes on a rune boundary. NUL bytes and
// invalid UTF-8 are removed first; Postgres text columns reject both.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
