package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"floorpulse-backend/internal/events"
	"github.com/go-chi/chi/v5"
)

// EventsHandler streams hub events to browsers as server-sent events.
type EventsHandler struct {
	Hub       *events.Hub
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func (h EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.stream)
}

// stream serves GET /events?types=attendance.changed,metrics.updated
func (h EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var names []events.Name
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			names = append(names, events.Name(t))
		}
	}
	// The server write timeout would otherwise end long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.Hub.Subscribe(64, names...)
	defer h.Hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", sub.ID)
	flusher.Flush()

	interval := h.Heartbeat
	if interval <= 0 {
		interval = 30 * time.Second
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(map[string]any{"payload": ev.Payload, "at": ev.At})
			if err != nil {
				h.logger().Warn("failed to encode event", "event", string(ev.Name), "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h EventsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
