// Package cart holds the in-memory cart a terminal builds before checkout.
// Nothing in this package touches storage.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

// Product is the catalog data a line needs when it is added.
type Product struct {
	ID    uuid.UUID
	Code  string
	Name  string
	Price decimal.Decimal
}

// Line is one product in the cart. UnitPrice is captured when the product is
// first added and never refreshed.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is UnitPrice times Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered set of lines keyed by product. It is owned by one
// terminal and is not safe for concurrent use; see Registry.
type Cart struct {
	lines []*Line
	index map[uuid.UUID]int
	tax   TaxPolicy
}

// New returns an empty cart using the given tax policy.
func New(tax TaxPolicy) *Cart {
	return &Cart{index: make(map[uuid.UUID]int), tax: tax}
}

// AddOrIncrement adds the product at quantity 1 or bumps an existing line by
// one. The line is left unchanged when the result would exceed availableStock.
func (c *Cart) AddOrIncrement(product Product, availableStock int) error {
	if product.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	next := 1
	if i, ok := c.index[product.ID]; ok {
		next = c.lines[i].Quantity + 1
	}
	if next > availableStock {
		return insufficientStock(product.ID, next, availableStock)
	}
	if i, ok := c.index[product.ID]; ok {
		c.lines[i].Quantity = next
		return nil
	}
	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, &Line{
		ProductID: product.ID,
		Code:      product.Code,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	})
	return nil
}

// SetQuantity clamps newQty into [1, availableStock] and returns the quantity
// applied. Use Remove to delete a line.
func (c *Cart) SetQuantity(productID uuid.UUID, newQty, availableStock int) (int, error) {
	i, ok := c.index[productID]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart").
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	line := c.lines[i]
	if availableStock < 1 {
		return line.Quantity, insufficientStock(productID, newQty, availableStock)
	}
	qty := newQty
	if qty < 1 {
		qty = 1
	}
	if qty > availableStock {
		qty = availableStock
	}
	line.Quantity = qty
	return qty, nil
}

// Remove deletes the line for productID. Removing an absent product is a no-op.
func (c *Cart) Remove(productID uuid.UUID) {
	i, ok := c.index[productID]
	if !ok {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, productID)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[uuid.UUID]int)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, *line)
	}
	return out
}

// Line returns the line for productID.
func (c *Cart) Line(productID uuid.UUID) (Line, bool) {
	i, ok := c.index[productID]
	if !ok {
		return Line{}, false
	}
	return *c.lines[i], true
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TaxPolicy returns the policy the cart was created with.
func (c *Cart) TaxPolicy() TaxPolicy {
	return c.tax
}

func insufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		})
}
