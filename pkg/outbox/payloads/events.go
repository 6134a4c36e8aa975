package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptLine mirrors one printed receipt row.
type ReceiptLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleCompletedEvent carries the receipt to printers and downstream consumers.
type SaleCompletedEvent struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	IssuedAt      time.Time       `json:"issued_at"`
	Lines         []ReceiptLine   `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CashierName   string          `json:"cashier_name"`
}

// StockClampedEvent reports an outbound movement that exceeded the stock on hand.
type StockClampedEvent struct {
	ProductID uuid.UUID  `json:"product_id"`
	SaleID    *uuid.UUID `json:"sale_id,omitempty"`
	Requested int        `json:"requested"`
	Previous  int        `json:"previous"`
	Shortfall int        `json:"shortfall"`
}

// ReconciliationDriftEvent reports one anomaly found by reconciliation.
type ReconciliationDriftEvent struct {
	Kind      string     `json:"kind"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	SaleID    *uuid.UUID `json:"sale_id,omitempty"`
	Expected  int        `json:"expected"`
	Actual    int        `json:"actual"`
	Detail    string     `json:"detail,omitempty"`
}
