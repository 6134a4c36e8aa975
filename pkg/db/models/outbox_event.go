package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Outbox row states as reported in logs.
const (
	OutboxStatePending   = "pending"
	OutboxStatePublished = "published"
	OutboxStateDead      = "dead"
)

// OutboxEvent is written in the same unit of work as the sale or stock change
// it describes and relayed to Pub/Sub by the outbox publisher. Payload holds
// the JSON envelope.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	// TerminalAt is set when the row was copied to outbox_dlq.
	TerminalAt *time.Time `gorm:"column:terminal_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// State derives the relay state from the timestamps.
func (e OutboxEvent) State() string {
	switch {
	case e.PublishedAt != nil:
		return OutboxStatePublished
	case e.TerminalAt != nil:
		return OutboxStateDead
	default:
		return OutboxStatePending
	}
}
