package enums

// SaleStatus maps to the sales.status column. Checkout only ever writes SaleStatusCompleted.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusCompleted,
}

// IsValid reports whether the value is a known sale status.
func (s SaleStatus) IsValid() bool {
	return oneOf(validSaleStatuses, s)
}

// ParseSaleStatus converts raw input into SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	return parse("sale status", validSaleStatuses, value)
}
