package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// ActivityLogEntry is an append-only audit record.
type ActivityLogEntry struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	Action    enums.ActivityAction `gorm:"column:action;type:varchar(32);not null"`
	Entity    string               `gorm:"column:entity;not null"`
	EntityID  *uuid.UUID           `gorm:"column:entity_id;type:uuid"`
	Detail    string               `gorm:"column:detail;not null;default:''"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_log"
}
