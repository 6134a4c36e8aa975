package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// InventoryMovement is an append-only signed stock change.
type InventoryMovement struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	Direction enums.MovementDirection `gorm:"column:direction;type:varchar(8);not null"`
	Quantity  int                     `gorm:"column:quantity;not null"`
	Reason    enums.MovementReason    `gorm:"column:reason;type:varchar(16);not null"`
	ActorID   uuid.UUID               `gorm:"column:actor_id;type:uuid;not null"`
	SaleID    *uuid.UUID              `gorm:"column:sale_id;type:uuid"`
	Note      *string                 `gorm:"column:note"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}
