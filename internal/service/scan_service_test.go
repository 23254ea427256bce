package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"floorpulse-backend/internal/cooldown"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu        sync.Mutex
	toggles   []domain.ID
	result    domain.ToggleResult
	toggleErr error

	added     []domain.EmployeeCandidate
	addStatus string
	addErr    error
}

func (f *fakeStore) ToggleAttendance(_ context.Context, id domain.ID) (domain.ToggleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, id)
	return f.result, f.toggleErr
}

func (f *fakeStore) AddEmployee(_ context.Context, c domain.EmployeeCandidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, c)
	return f.addStatus, f.addErr
}

func (f *fakeStore) toggleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toggles)
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []events.Name
	payloads []any
}

func (p *recordingPublisher) Publish(name events.Name, payload any) {
	p.mu.Lock()
	p.events = append(p.events, name)
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
}

func (p *recordingPublisher) payloadJSON(t *testing.T, i int) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	b, err := json.Marshal(p.payloads[i])
	if err != nil {
		t.Fatalf("marshal payload %d: %v", i, err)
	}
	return string(b)
}

func (p *recordingPublisher) names() []events.Name {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Name(nil), p.events...)
}

type memRecorder struct {
	mu     sync.Mutex
	events []domain.ScanEvent
}

func (m *memRecorder) Record(_ context.Context, ev domain.ScanEvent) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

func newScanService(store *fakeStore) (*ScanService, *stepClock, *recordingPublisher, *memRecorder) {
	clock := &stepClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	rec := &memRecorder{}
	svc := &ScanService{
		Store:     store,
		Registrar: store,
		Cooldown:  cooldown.New(10*time.Second, 0, clock),
		Events:    pub,
		Recorder:  rec,
		Now:       clock.Now,
	}
	return svc, clock, pub, rec
}

func TestParsePayload(t *testing.T) {
	cases := []struct {
		raw     string
		want    domain.ID
		name    string
		wantErr bool
	}{
		{raw: "17", want: "17"},
		{raw: "  EMP-004 \n", want: "EMP-004"},
		{raw: `"abc"`, want: "abc"},
		{raw: `{"id": 9, "name": "Ravi", "department": "Spring"}`, want: "9", name: "Ravi"},
		{raw: `{"id": "x1"}`, want: "x1"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: `{"name": "no id"}`, wantErr: true},
		{raw: `{"id": ""}`, wantErr: true},
		{raw: `{"id": 1`, wantErr: true},
		{raw: "two words", wantErr: true},
		{raw: `[1,2]`, wantErr: true},
		{raw: `"with space"`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePayload(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidPayload) {
				t.Errorf("ParsePayload(%q) err = %v, want ErrInvalidPayload", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePayload(%q): %v", tc.raw, err)
			continue
		}
		if got.ID != tc.want || got.Name != tc.name {
			t.Errorf("ParsePayload(%q) = %+v", tc.raw, got)
		}
	}
}

func TestIngestCooldownSuppressesRepeatScans(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleOK, Working: true}}
	svc, clock, pub, rec := newScanService(store)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "17")
	if err != nil || res.Outcome != domain.ScanToggled || !res.Working {
		t.Fatalf("first scan: %+v %v", res, err)
	}

	clock.Advance(3 * time.Second)
	res, err = svc.Ingest(ctx, "17")
	var cd *domain.CooldownError
	if !errors.As(err, &cd) || !errors.Is(err, domain.ErrCooldownActive) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if cd.Remaining != 7*time.Second || res.Outcome != domain.ScanCooldown {
		t.Fatalf("remaining = %v outcome = %s", cd.Remaining, res.Outcome)
	}
	if store.toggleCount() != 1 {
		t.Fatalf("toggles = %d, want 1", store.toggleCount())
	}

	clock.Advance(8 * time.Second)
	if _, err := svc.Ingest(ctx, "17"); err != nil {
		t.Fatalf("scan after window: %v", err)
	}
	if store.toggleCount() != 2 {
		t.Fatalf("toggles = %d, want 2", store.toggleCount())
	}

	if got := pub.names(); len(got) != 2 || got[0] != events.AttendanceChanged {
		t.Fatalf("published = %v", got)
	}
	if len(rec.events) != 3 || rec.events[1].Outcome != domain.ScanCooldown {
		t.Fatalf("recorded = %+v", rec.events)
	}
}

func TestIngestDistinctIdentifiersAreIndependent(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleOK}}
	svc, _, _, _ := newScanService(store)

	for _, raw := range []string{"1", "2", `{"id": 3}`} {
		if _, err := svc.Ingest(context.Background(), raw); err != nil {
			t.Fatalf("scan %s: %v", raw, err)
		}
	}
	if store.toggleCount() != 3 {
		t.Fatalf("toggles = %d, want 3", store.toggleCount())
	}
}

func TestIngestInvalidPayloadSkipsStore(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleOK}}
	svc, _, _, rec := newScanService(store)

	res, err := svc.Ingest(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidPayload) || res.Outcome != domain.ScanInvalid {
		t.Fatalf("got %+v %v", res, err)
	}
	if store.toggleCount() != 0 {
		t.Fatal("store should not be called")
	}
	if len(rec.events) != 1 || rec.events[0].Outcome != domain.ScanInvalid {
		t.Fatalf("recorded = %+v", rec.events)
	}
}

func TestIngestUnknownUserRaisesPrompt(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleUnknownUser}}
	svc, _, pub, _ := newScanService(store)

	res, err := svc.Ingest(context.Background(), `{"id": "N-1", "name": "Mira", "department": "Assembly"}`)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Outcome != domain.ScanUnknownUser || res.Prompt == nil || res.Prompt.Name != "Mira" {
		t.Fatalf("unexpected result %+v", res)
	}
	pending := svc.PendingRegistration()
	if pending == nil || pending.ID != "N-1" || pending.Department != "Assembly" {
		t.Fatalf("pending = %+v", pending)
	}
	if len(pub.names()) != 0 {
		t.Fatalf("unknown user must not publish attendance changes: %v", pub.names())
	}

	svc.DismissRegistration()
	if svc.PendingRegistration() != nil {
		t.Fatal("prompt should be dismissed")
	}
}

func TestIngestToggleFailureKeepsCooldown(t *testing.T) {
	store := &fakeStore{toggleErr: errors.New("connection refused")}
	svc, clock, _, _ := newScanService(store)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "5")
	if !errors.Is(err, domain.ErrToggleFailed) {
		t.Fatalf("expected ErrToggleFailed, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := svc.Ingest(ctx, "5"); !errors.Is(err, domain.ErrCooldownActive) {
		t.Fatalf("expected cooldown after failed toggle, got %v", err)
	}
	if store.toggleCount() != 1 {
		t.Fatalf("toggles = %d, want 1", store.toggleCount())
	}

	store.toggleErr = nil
	store.result = domain.ToggleResult{Status: domain.ToggleError, Message: "db locked"}
	clock.Advance(10 * time.Second)
	res, err := svc.Ingest(ctx, "5")
	if !errors.Is(err, domain.ErrToggleFailed) || res.Outcome != domain.ScanFailed {
		t.Fatalf("error status: %+v %v", res, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := &fakeStore{addStatus: "created"}
	svc, _, _, _ := newScanService(store)

	err := svc.Register(context.Background(), domain.EmployeeCandidate{ID: "7", Name: "  ", Age: 0})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ve.Fields) != 3 {
		t.Fatalf("fields = %v", ve.Fields)
	}
	if len(store.added) != 0 {
		t.Fatal("store should not be called")
	}
}

func TestRegisterSuccessClearsPrompt(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleUnknownUser}, addStatus: "created"}
	svc, _, pub, _ := newScanService(store)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "N-2"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	err := svc.Register(ctx, domain.EmployeeCandidate{ID: "N-2", Name: " Lena ", Age: 29, Department: "Foam"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if svc.PendingRegistration() != nil {
		t.Fatal("prompt should be cleared")
	}
	if len(store.added) != 1 || store.added[0].Name != "Lena" {
		t.Fatalf("added = %+v", store.added)
	}
	if got := pub.names(); len(got) != 1 || got[0] != events.EmployeeRegistered {
		t.Fatalf("published = %v", got)
	}
}

func TestRegisterFailureKeepsPrompt(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleUnknownUser}, addStatus: "duplicate"}
	svc, _, _, _ := newScanService(store)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "N-3"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	c := domain.EmployeeCandidate{ID: "N-3", Name: "Omar", Age: 40, Department: "Spring"}
	if err := svc.Register(ctx, c); !errors.Is(err, domain.ErrRegistrationFailed) {
		t.Fatalf("expected ErrRegistrationFailed, got %v", err)
	}
	store.addStatus, store.addErr = "", errors.New("timeout")
	if err := svc.Register(ctx, c); !errors.Is(err, domain.ErrRegistrationFailed) {
		t.Fatalf("expected ErrRegistrationFailed, got %v", err)
	}
	if svc.PendingRegistration() == nil {
		t.Fatal("prompt should survive a failed registration")
	}
}

func TestIngestNumericSpellingsShareCooldown(t *testing.T) {
	store := &fakeStore{result: domain.ToggleResult{Status: domain.ToggleOK, Working: true}}
	svc, _, _, _ := newScanService(store)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, `{"id": 17}`); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	for _, raw := range []string{`{"id": 17.0}`, `{"id": 1.7e1}`, "17"} {
		if _, err := svc.Ingest(ctx, raw); !errors.Is(err, domain.ErrCooldownActive) {
			t.Fatalf("%s should hit the cooldown, got %v", raw, err)
		}
	}
	if n := store.toggleCount(); n != 1 {
		t.Fatalf("toggles = %d, want 1", n)
	}
}

func TestPublishedPayloadsUseJSONKeys(t *testing.T) {
	store := &fakeStore{
		result:    domain.ToggleResult{Status: domain.ToggleOK, Working: true},
		addStatus: "created",
	}
	svc, _, pub, _ := newScanService(store)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "17"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := svc.Register(ctx, domain.EmployeeCandidate{ID: "N-5", Name: "Ivy", Age: 33, Department: "Foam"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	toggled := pub.payloadJSON(t, 0)
	for _, key := range []string{`"id":"17"`, `"working":true`, `"outcome":"toggled"`} {
		if !strings.Contains(toggled, key) {
			t.Errorf("attendance payload %s lacks %s", toggled, key)
		}
	}
	registered := pub.payloadJSON(t, 1)
	for _, key := range []string{`"id":"N-5"`, `"name":"Ivy"`, `"department":"Foam"`} {
		if !strings.Contains(registered, key) {
			t.Errorf("registration payload %s lacks %s", registered, key)
		}
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("a", 511) + "é"
	got := truncate(long, 512)
	if !utf8.ValidString(got) || len(got) != 511 {
		t.Fatalf("truncate split a rune: len=%d valid=%v", len(got), utf8.ValidString(got))
	}
	if got := truncate("ab\x00c", 512); got != "abc" {
		t.Fatalf("NUL bytes should be dropped, got %q", got)
	}
	if got := truncate("ok\xffok", 512); got != "okok" {
		t.Fatalf("invalid bytes should be dropped, got %q", got)
	}
}

func TestScanAuditPayloadIsStorable(t *testing.T) {
	store := &fakeStore{}
	svc, _, _, rec := newScanService(store)
	raw := "{" + strings.Repeat("x", 511) + "é\x00"
	_, _ = svc.Ingest(context.Background(), raw)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 {
		t.Fatalf("recorded %d events", len(rec.events))
	}
	ev := rec.events[0]
	if !utf8.ValidString(ev.Payload) || strings.ContainsRune(ev.Payload, 0) || len(ev.Payload) > 512 {
		t.Fatalf("payload not storable: len=%d", len(ev.Payload))
	}
}
