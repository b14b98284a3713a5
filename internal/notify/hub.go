package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/repsync/internal/metrics"
	"github.com/roach88/repsync/internal/state"
)

// DefaultReviewMessage is shown when a notification carries no text.
const DefaultReviewMessage = "How was today's workout? Your feedback shapes the next routine."

// Source delivers raw push messages.
//
// Subscribe blocks, calling deliver once per message, until ctx is done or
// the connection fails. Reconnection is the caller's concern.
type Source interface {
	Subscribe(ctx context.Context, deliver func(raw []byte)) error
}

// Handler receives deduplicated events.
type Handler func(Event)

// Unsubscribe removes a handler. Calling it more than once is a no-op.
type Unsubscribe func()

// message is the wire format of a review notification.
type message struct {
	RoutineID state.ID `json:"routineId"`
	Message   string   `json:"message"`
}

// Hub fans deduplicated events out to subscribers.
//
// Thread-safety: Subscribe and the returned Unsubscribe are safe for
// concurrent use, including from inside a handler. Run must be called from
// exactly one goroutine.
type Hub struct {
	source  Source
	dedup   *Deduplicator
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	handlers map[uint64]Handler
	nextID   uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithMetrics counts delivered, suppressed and malformed messages.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a hub reading from source. A nil dedup uses the default
// windows.
func NewHub(source Source, dedup *Deduplicator, opts ...HubOption) *Hub {
	if dedup == nil {
		dedup = NewDeduplicator()
	}
	h := &Hub{
		source:   source,
		dedup:    dedup,
		logger:   slog.Default(),
		handlers: make(map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers handler for every delivered event.
func (h *Hub) Subscribe(handler Handler) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.handlers[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			h.mu.Unlock()
		})
	}
}

// Run reads from the source until ctx is done. Returns nil on cancellation
// and the source's error otherwise.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("notification hub starting")
	err := h.source.Subscribe(ctx, h.Publish)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	if err != nil {
		h.logger.Error("notification source failed", "error", err)
		return err
	}
	h.logger.Info("notification hub stopped")
	return nil
}

// Publish decodes one raw message and delivers it unless it is a duplicate.
// Malformed messages are logged and dropped.
func (h *Hub) Publish(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("dropping malformed notification", "error", err, "size", len(raw))
		h.metrics.Notification("malformed")
		return
	}

	ev := Event{Content: msg.Message}
	if ev.Content == "" {
		ev.Content = DefaultReviewMessage
	}
	if msg.RoutineID != "" {
		ev.CorrelationKey = "routine-" + msg.RoutineID.String()
	}

	if !h.dedup.ShouldDeliver(ev) {
		h.logger.Debug("suppressed duplicate notification", "correlation_key", ev.CorrelationKey)
		h.metrics.Notification("suppressed")
		return
	}
	h.metrics.Notification("delivered")

	for _, handler := range h.snapshot() {
		handler(ev)
	}
}

// snapshot returns the handlers in subscription order.
func (h *Hub) snapshot() []Handler {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]uint64, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler, len(ids))
	for i, id := range ids {
		out[i] = h.handlers[id]
	}
	return out
}
