package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Host post-commit hooks publish these after the entity is stored.
const (
	EventCustomerRegistered         = "customer_registered"
	EventCustomerUpdated            = "customer_updated"
	EventOrderPlaced                = "order_placed"
	EventOrderStateChanged          = "order_state_changed"
	EventNewsletterRecipientChanged = "newsletter_recipient_changed"
)

// EntityEventPayload identifies the entity a hook fired for.
type EntityEventPayload struct {
	ScopeID  string `json:"scope_id"`
	EntityID string `json:"entity_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type synchronously and returns
// their errors joined. One failing handler does not stop the others.
func (b *EventBus) Publish(ctx context.Context, event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(ctx context.Context, eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(ctx, &Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
