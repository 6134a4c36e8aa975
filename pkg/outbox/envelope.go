package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/types"
)

// EnvelopeVersion is written on every new event.
const EnvelopeVersion = 1

// ActorRef is the cashier or supervisor behind an event. It is nil for
// events raised by the cron worker.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name,omitempty"`
	Role   string    `json:"role,omitempty"`
}

// ActorFromIdentity copies the session identity into an event actor.
func ActorFromIdentity(id types.Identity) *ActorRef {
	if id.UserID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: id.UserID, Name: id.Name, Role: string(id.Role)}
}

// PayloadEnvelope is what outbox_events.payload holds. Data carries the
// event-specific body registered for the event type.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes written by a
// newer producer or missing an event id.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("envelope event id: %w", err)
	}
	return env, nil
}
