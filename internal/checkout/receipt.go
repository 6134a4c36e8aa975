package checkout

import (
	"time"

	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptLine is one printed line of a receipt.
type ReceiptLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Receipt is handed to the caller after a successful checkout. Printing and
// formatting belong to the consumer.
type Receipt struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	IssuedAt      time.Time           `json:"issued_at"`
	Lines         []ReceiptLine       `json:"lines"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CashierName   string              `json:"cashier_name"`
}

func (r Receipt) event() payloads.SaleCompletedEvent {
	lines := make([]payloads.ReceiptLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, payloads.ReceiptLine{
			ProductID: line.ProductID,
			Code:      line.Code,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return payloads.SaleCompletedEvent{
		SaleID:        r.SaleID,
		IssuedAt:      r.IssuedAt,
		Lines:         lines,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Total:         r.Total,
		PaymentMethod: string(r.PaymentMethod),
		CashierName:   r.CashierName,
	}
}
