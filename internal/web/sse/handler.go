// Package sse streams change notifications from the event bus to web
// clients as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
)

// Handler streams events from the EventBus to connected SSE clients.
type Handler struct {
	bus           *events.EventBus
	logger        *logging.Logger
	mu            sync.RWMutex
	clients       map[*client]struct{}
	heartbeatFreq time.Duration
}

type client struct {
	id     string
	done   chan struct{}
	task   string
	closed bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for connection events.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHeartbeat sets the interval between heartbeat comments.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		h.heartbeatFreq = d
	}
}

// NewHandler creates a new SSE handler connected to the given EventBus.
func NewHandler(bus *events.EventBus, opts ...Option) *Handler {
	h := &Handler{
		bus:           bus,
		logger:        logging.NewNop(),
		clients:       make(map[*client]struct{}),
		heartbeatFreq: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler for SSE connections.
//
// Query parameters: task limits the stream to one task (events without a
// task, such as anomalies, still arrive); types is a comma-separated list
// of event types.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{
		id:   uuid.NewString(),
		done: make(chan struct{}),
		task: r.URL.Query().Get("task"),
	}
	h.addClient(c)
	defer h.removeClient(c)

	types := splitTypes(r.URL.Query().Get("types"))
	var eventCh <-chan events.Event
	if c.task != "" {
		eventCh = h.bus.SubscribeForTask(c.task, types...)
	} else {
		eventCh = h.bus.Subscribe(types...)
	}
	defer h.bus.Unsubscribe(eventCh)

	h.logger.Debug("sse client connected", "client_id", c.id, "task_id", c.task)
	h.sendEvent(w, flusher, "connected", map[string]string{
		"client_id": c.id,
		"task":      c.task,
	})

	heartbeat := time.NewTicker(h.heartbeatFreq)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("sse client disconnected", "client_id", c.id)
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			h.sendComment(w, flusher, "heartbeat")
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			h.sendEvent(w, flusher, event.EventType(), event)
		}
	}
}

func splitTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// sendEvent sends a typed SSE event.
func (h *Handler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal SSE data", "event", eventType, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	flusher.Flush()
}

// sendComment sends an SSE comment (used for heartbeats).
func (h *Handler) sendComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
	flusher.Flush()
}

func (h *Handler) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Handler) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients.
func (h *Handler) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.closed {
			c.closed = true
			close(c.done)
		}
	}
	h.clients = make(map[*client]struct{})
	return nil
}
