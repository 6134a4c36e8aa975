package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel is the current on-hand quantity for one product. It is only
// written through inventory ledger postings.
type StockLevel struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Location  string    `gorm:"column:location;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
