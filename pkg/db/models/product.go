package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry. Products are deactivated, never deleted,
// once historical sales reference them.
type Product struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string          `gorm:"column:code;not null"`
	Name             string          `gorm:"column:name;not null"`
	Description      *string         `gorm:"column:description"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Cost             decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	ReorderThreshold int             `gorm:"column:reorder_threshold;not null;default:0"`
	CategoryID       *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	SupplierID       *uuid.UUID      `gorm:"column:supplier_id;type:uuid"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true"`
	Stock            *StockLevel     `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
