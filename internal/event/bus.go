// Package event is an in-process publish/subscribe bus for ingestion and
// chat-turn lifecycle notifications.
package event

import (
	"sync"
	"time"
)

// Type represents the kind of lifecycle event.
type Type string

const (
	TurnStarted     Type = "turn_started"
	StateChanged    Type = "state_changed"
	RetrievalFailed Type = "retrieval_failed"
	TurnCompleted   Type = "turn_completed"
	TurnDegraded    Type = "turn_degraded"
	IngestStarted   Type = "ingest_started"
	IngestCompleted Type = "ingest_completed"
	IngestFailed    Type = "ingest_failed"
	PersonaUpdated  Type = "persona_updated"
	HistoryReset    Type = "history_reset"
)

// Event represents a lifecycle event with associated data.
type Event struct {
	Type      Type
	Timestamp time.Time
	SessionID string
	Data      map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus manages event publication and subscription. A nil *Bus is valid and
// drops every event.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all registered handlers synchronously.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	specific := append([]Handler(nil), b.handlers[e.Type]...)
	all := append([]Handler(nil), b.allHandlers...)
	b.mu.RUnlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	for _, h := range specific {
		h(e)
	}
	for _, h := range all {
		h(e)
	}
}

// PublishSimple publishes an event without additional data.
func (b *Bus) PublishSimple(t Type, sessionID string) {
	b.Publish(Event{Type: t, SessionID: sessionID})
}

// PublishWithData publishes an event with associated data.
func (b *Bus) PublishWithData(t Type, sessionID string, data map[string]any) {
	b.Publish(Event{Type: t, SessionID: sessionID, Data: data})
}
