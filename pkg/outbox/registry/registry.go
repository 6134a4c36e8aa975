// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to the aggregates it may belong to,
// the topic it is published on and a constructor for its payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	Aggregates     []enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a row that passed every check and is ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

func descriptor[P any](event enums.OutboxEventType, topic string, aggregates ...enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      event,
		Aggregates:     aggregates,
		Topic:          topic,
		PayloadFactory: func() any { return new(P) },
	}
}

// NewEventRegistry sends receipts to the sales topic and stock events to
// the inventory topic. Both topics must be configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing error
	if cfg.SalesTopic == "" {
		missing = multierr.Append(missing, errors.New("sales topic is required"))
	}
	if cfg.InventoryTopic == "" {
		missing = multierr.Append(missing, errors.New("inventory topic is required"))
	}
	if missing != nil {
		return nil, missing
	}

	r := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, d := range []EventDescriptor{
		descriptor[payloads.SaleCompletedEvent](enums.EventSaleCompleted, cfg.SalesTopic, enums.AggregateSale),
		descriptor[payloads.StockClampedEvent](enums.EventStockClamped, cfg.InventoryTopic, enums.AggregateProduct),
		descriptor[payloads.ReconciliationDriftEvent](enums.EventReconciliationDrift, cfg.InventoryTopic, enums.AggregateProduct, enums.AggregateSale),
	} {
		r.byType[d.EventType] = d
	}
	return r, nil
}

// Topics returns the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.byType))
	for _, d := range r.byType {
		set[d.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError: retrying the same bytes cannot
// succeed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, err := r.check(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s row %s has no payload", event.EventType, event.ID))
	}
	payload := d.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}

func (r *EventRegistry) check(event models.OutboxEvent) (EventDescriptor, error) {
	d, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return d, fmt.Errorf("unsupported event type %q", event.EventType)
	case !slices.Contains(d.Aggregates, event.AggregateType):
		return d, fmt.Errorf("%s belongs to %v aggregates, row says %s", event.EventType, d.Aggregates, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return d, fmt.Errorf("%s row %s has no aggregate id", event.EventType, event.ID)
	}
	return d, nil
}
