package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(_ context.Context, event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe("test_event", handler)

	payload := map[string]string{"foo": "bar"}
	err := bus.PublishJSON(context.Background(), "test_event", payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %v", decoded)
	}
	if received.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestEventBusJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Subscribe("e", func(context.Context, *Event) error { calls++; return errors.New("first") })
	bus.Subscribe("e", func(context.Context, *Event) error { calls++; return nil })

	err := bus.Publish(context.Background(), &Event{Type: "e"})
	if err == nil || err.Error() != "first" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(context.Background(), "e", nil); err != nil {
		t.Fatalf("expected nil bus to be a no-op, got %v", err)
	}
}

type recordingSyncer struct {
	calls []string
	err   error
}

func (r *recordingSyncer) record(kind, scopeID, id string) error {
	r.calls = append(r.calls, fmt.Sprintf("%s:%s:%s", kind, scopeID, id))
	return r.err
}

func (r *recordingSyncer) SyncCustomer(_ context.Context, scopeID, id string) error {
	return r.record("customer", scopeID, id)
}

func (r *recordingSyncer) SyncOrder(_ context.Context, scopeID, id string) error {
	return r.record("order", scopeID, id)
}

func (r *recordingSyncer) SyncNewsletterRecipient(_ context.Context, scopeID, id string) error {
	return r.record("newsletter", scopeID, id)
}

func TestRegisterSyncHooks(t *testing.T) {
	bus := NewEventBus()
	syncer := &recordingSyncer{}
	logger := zerolog.Nop()
	RegisterSyncHooks(bus, syncer, &logger)
	ctx := context.Background()

	for _, ev := range []string{EventCustomerRegistered, EventOrderPlaced, EventNewsletterRecipientChanged} {
		if err := bus.PublishJSON(ctx, ev, EntityEventPayload{ScopeID: "s1", EntityID: "42"}); err != nil {
			t.Fatalf("publish %s: %v", ev, err)
		}
	}

	want := []string{"customer:s1:42", "order:s1:42", "newsletter:s1:42"}
	if fmt.Sprint(syncer.calls) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, syncer.calls)
	}

	if err := bus.PublishJSON(ctx, EventOrderPlaced, EntityEventPayload{ScopeID: "s1"}); err == nil {
		t.Fatal("expected error for missing entity id")
	}
}

func TestSyncHookIgnoresConfigurationErrors(t *testing.T) {
	bus := NewEventBus()
	syncer := &recordingSyncer{err: fmt.Errorf("%w: order sync disabled", models.ErrConfiguration)}
	logger := zerolog.Nop()
	RegisterSyncHooks(bus, syncer, &logger)

	if err := bus.PublishJSON(context.Background(), EventOrderPlaced, EntityEventPayload{ScopeID: "s1", EntityID: "1"}); err != nil {
		t.Fatalf("expected configuration error to be swallowed after logging, got %v", err)
	}

	syncer.err = errors.New("redis down")
	if err := bus.PublishJSON(context.Background(), EventOrderPlaced, EntityEventPayload{ScopeID: "s1", EntityID: "1"}); err == nil {
		t.Fatal("expected queue error to surface")
	}
}
