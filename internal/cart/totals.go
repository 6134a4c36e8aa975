package cart

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxPolicy configures the value-added tax applied on top of the subtotal.
// Places is the number of decimals of the currency's minor unit.
type TaxPolicy struct {
	Enabled     bool
	RatePercent decimal.Decimal
	Places      int32
}

// NoTax leaves totals equal to the subtotal.
var NoTax = TaxPolicy{}

// Apply returns the tax owed on subtotal, rounded half away from zero.
func (p TaxPolicy) Apply(subtotal decimal.Decimal) decimal.Decimal {
	if !p.Enabled || p.RatePercent.IsZero() {
		return decimal.Zero
	}
	return subtotal.Mul(p.RatePercent).Div(hundred).Round(p.Places)
}

// Totals is the priced summary of a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Totals recomputes the subtotal from the lines, then tax and total.
func (c *Cart) Totals() Totals {
	subtotal := decimal.Zero
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.Subtotal())
	}
	tax := c.tax.Apply(subtotal)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
