package catalog

import (
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductView is a product joined with its current stock.
type ProductView struct {
	ID               uuid.UUID       `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Cost             decimal.Decimal `json:"cost"`
	ReorderThreshold int             `json:"reorder_threshold"`
	IsActive         bool            `json:"is_active"`
	Quantity         int             `json:"quantity"`
	Location         string          `json:"location,omitempty"`
}

// LowStock reports whether the quantity is below the reorder threshold.
func (v ProductView) LowStock() bool {
	return v.Quantity < v.ReorderThreshold
}

func viewFromModel(p models.Product) ProductView {
	view := ProductView{
		ID:               p.ID,
		Code:             p.Code,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Cost:             p.Cost,
		ReorderThreshold: p.ReorderThreshold,
		IsActive:         p.IsActive,
	}
	if p.Stock != nil {
		view.Quantity = p.Stock.Quantity
		view.Location = p.Stock.Location
	}
	return view
}

func viewsFromModels(rows []models.Product) []ProductView {
	views := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		views = append(views, viewFromModel(row))
	}
	return views
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Code             string
	Name             string
	Description      *string
	Price            decimal.Decimal
	Cost             decimal.Decimal
	ReorderThreshold int
	CategoryID       *uuid.UUID
	SupplierID       *uuid.UUID
	InitialStock     int
	Location         string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name             *string
	Description      *string
	Price            *decimal.Decimal
	Cost             *decimal.Decimal
	ReorderThreshold *int
	Location         *string
}
