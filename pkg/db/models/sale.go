package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Sale is written once per successful checkout and never updated.
type Sale struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	CashierName    string              `gorm:"column:cashier_name;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax            decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:varchar(16);not null"`
	Status         enums.SaleStatus    `gorm:"column:status;type:varchar(16);not null"`
	IdempotencyKey *string             `gorm:"column:idempotency_key"`
	Lines          []SaleLine          `gorm:"foreignKey:SaleID;constraint:OnDelete:RESTRICT"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// SaleLine captures one cart line at the price seen by the payer.
type SaleLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SaleID    uuid.UUID       `gorm:"column:sale_id;type:uuid;not null"`
	LineNo    int             `gorm:"column:line_no;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
}
