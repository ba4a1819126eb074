package events

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event is the envelope of every domain event published on the bus
type Event struct {
	Topic     string         `json:"topic"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   any            `json:"payload"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// New builds an event for payload
func New(topic, typ string, at time.Time, payload any) Event {
	return Event{Topic: topic, Type: typ, Timestamp: at, Payload: payload}
}

// EventHandler handles one event. It runs on the publisher's goroutine with
// the publisher's context and must not block. Panics are recovered and logged
// by the bus.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the interface for publishing and subscribing to events
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(topic string, handler EventHandler)
}

// AllTopics subscribes a handler to every topic.
const AllTopics = "*"

// InMemoryEventBus delivers events synchronously, in publish order, to the
// handlers of the event's topic and then to the AllTopics handlers.
type InMemoryEventBus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   map[string][]EventHandler

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

type EventBusMetrics struct {
	Published int64
	Delivered int64
	Failed    int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		logger: logger,
		subs:   make(map[string][]EventHandler),
	}
}

// Publish delivers an event to all subscribers of the topic
func (bus *InMemoryEventBus) Publish(ctx context.Context, event Event) {
	bus.published.Add(1)
	bus.mu.RLock()
	handlers := append([]EventHandler{}, bus.subs[event.Topic]...)
	handlers = append(handlers, bus.subs[AllTopics]...)
	bus.mu.RUnlock()
	if len(handlers) == 0 {
		bus.logger.Debug("No subscribers for event", zap.String("topic", event.Topic), zap.String("type", event.Type))
		return
	}
	for _, h := range handlers {
		bus.deliver(ctx, h, event)
	}
}

func (bus *InMemoryEventBus) deliver(ctx context.Context, h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("Event handler panic", zap.Any("recover", r), zap.String("topic", event.Topic))
			bus.failed.Add(1)
		}
	}()
	h(ctx, event)
	bus.delivered.Add(1)
}

// Subscribe registers a handler for a topic
func (bus *InMemoryEventBus) Subscribe(topic string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs[topic] = append(bus.subs[topic], handler)
	bus.logger.Debug("Subscribed handler to topic", zap.String("topic", topic))
}

// Metrics returns current event bus metrics
func (bus *InMemoryEventBus) Metrics() EventBusMetrics {
	return EventBusMetrics{
		Published: bus.published.Load(),
		Delivered: bus.delivered.Load(),
		Failed:    bus.failed.Load(),
	}
}

// Recorder keeps every event it is handed. Useful in tests and for the
// in-process audit trail.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
