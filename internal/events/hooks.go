package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

// EntitySyncer is the single-entity path of the sync dispatcher.
type EntitySyncer interface {
	SyncCustomer(ctx context.Context, scopeID, id string) error
	SyncOrder(ctx context.Context, scopeID, id string) error
	SyncNewsletterRecipient(ctx context.Context, scopeID, id string) error
}

// RegisterSyncHooks subscribes syncer to the host entity events. A scope
// without credentials or with the feature disabled is logged and ignored.
func RegisterSyncHooks(bus *EventBus, syncer EntitySyncer, logger *zerolog.Logger) {
	hook := func(syncFn func(ctx context.Context, scopeID, id string) error) EventHandler {
		return func(ctx context.Context, event *Event) error {
			var payload EntityEventPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				return fmt.Errorf("decode %s payload: %w", event.Type, err)
			}
			if payload.EntityID == "" {
				return fmt.Errorf("%s without entity id", event.Type)
			}
			err := syncFn(ctx, payload.ScopeID, payload.EntityID)
			if errors.Is(err, models.ErrConfiguration) {
				logger.Debug().Err(err).Str("event", event.Type).Msg("hook ignored")
				return nil
			}
			return err
		}
	}

	bus.Subscribe(EventCustomerRegistered, hook(syncer.SyncCustomer))
	bus.Subscribe(EventCustomerUpdated, hook(syncer.SyncCustomer))
	bus.Subscribe(EventOrderPlaced, hook(syncer.SyncOrder))
	bus.Subscribe(EventOrderStateChanged, hook(syncer.SyncOrder))
	bus.Subscribe(EventNewsletterRecipientChanged, hook(syncer.SyncNewsletterRecipient))
}
