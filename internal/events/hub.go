package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Name string

const (
	AttendanceChanged  Name = "attendance.changed"
	EmployeeRegistered Name = "employee.registered"
	MetricsUpdated     Name = "metrics.updated"
	MetricsStale       Name = "metrics.stale"
	ProductionLogged   Name = "production.logged"
	RosterUpdated      Name = "roster.updated"
	StockChanged       Name = "stock.changed"
)

// Event is one notification on the hub.
type Event struct {
	Name    Name
	Payload any
	At      time.Time
}

// Publisher is the narrow side services depend on.
type Publisher interface {
	Publish(name Name, payload any)
}

// Subscription receives events until it is cancelled or the hub closes.
type Subscription struct {
	ID     string
	C      <-chan Event
	ch     chan Event
	filter map[Name]struct{}
}

func (s *Subscription) wants(n Name) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[n]
	return ok
}

// Hub fans events out to subscribers. A slow subscriber loses events
// instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	log    *slog.Logger
	now    func() time.Time
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: make(map[string]*Subscription),
		log:  log,
		now:  time.Now,
	}
}

// Subscribe registers a listener for the given names; no names means all events.
func (h *Hub) Subscribe(buffer int, names ...Name) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch, filter: make(map[Name]struct{}, len(names))}
	for _, n := range names {
		sub.filter[n] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	h.log.Debug("event subscriber registered", "id", sub.ID, "total", len(h.subs))
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; ok {
		close(sub.ch)
		delete(h.subs, sub.ID)
		h.log.Debug("event subscriber removed", "id", sub.ID, "total", len(h.subs))
	}
}

func (h *Hub) Publish(name Name, payload any) {
	ev := Event{Name: name, Payload: payload, At: h.now()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if !sub.wants(name) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("event subscriber buffer full, dropping event", "id", sub.ID, "event", string(name))
		}
	}
}

// Close closes every subscription. Publishing afterwards is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
