package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SaleLineDTO is one persisted sale line.
type SaleLineDTO struct {
	LineNo    int             `json:"line_no"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleDTO is a sale header with its lines.
type SaleDTO struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	CashierName   string          `json:"cashier_name"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []SaleLineDTO   `json:"lines"`
}

func toDTO(sale models.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            sale.ID,
		UserID:        sale.UserID,
		CashierName:   sale.CashierName,
		Subtotal:      sale.Subtotal,
		Tax:           sale.Tax,
		Total:         sale.Total,
		PaymentMethod: string(sale.PaymentMethod),
		Status:        string(sale.Status),
		CreatedAt:     sale.CreatedAt,
		Lines:         make([]SaleLineDTO, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		dto.Lines = append(dto.Lines, SaleLineDTO{
			LineNo:    line.LineNo,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return dto
}

// Service is the read side of recorded sales.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	return &Service{repo: repo}, nil
}

// Get returns the sale with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	if sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
			WithDetails(map[string]any{"sale_id": id.String()})
	}
	dto := toDTO(*sale)
	return &dto, nil
}

// ListRecent returns completed sales created since the given time, newest first.
func (s *Service) ListRecent(ctx context.Context, since time.Time, limit int) ([]SaleDTO, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListSince(ctx, since, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	out := make([]SaleDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}
