package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/surveypro/internal/auth"
	"github.com/DukeRupert/surveypro/internal/events"
)

// DefaultHeartbeat is how often an idle event stream sends a comment line
// so proxies keep the connection open.
const DefaultHeartbeat = 25 * time.Second

// EventSubscriber is the subset of events.Hub the stream needs.
type EventSubscriber interface {
	Subscribe(origin string) (<-chan events.Event, func())
}

// EventsHandler streams storage changes and withdrawal toasts to the
// browser as server-sent events.
type EventsHandler struct {
	hub       EventSubscriber
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. A non-positive heartbeat
// uses DefaultHeartbeat.
func NewEventsHandler(hub EventSubscriber, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventsHandler{
		hub:       hub,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// RegisterRoutes registers GET /events.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, requireOrigin func(http.Handler) http.Handler) {
	mux.Handle("GET /events", requireOrigin(http.HandlerFunc(h.Stream)))
}

// Stream holds the connection open and writes one SSE message per event
// until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)
	rc := http.NewResponseController(w)

	// The stream outlives any server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream not supported", "error", err)
		return
	}

	ch, cancel := h.hub.Subscribe(origin)
	defer cancel()

	h.logger.Debug("event stream opened", "origin", origin)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("event stream closed", "origin", origin)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.Debug("event stream write failed", "origin", origin, "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes ev as one SSE message with a JSON data line.
func writeEvent(w http.ResponseWriter, ev events.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
