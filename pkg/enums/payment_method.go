package enums

// PaymentMethod is the tender recorded on a sale.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodTransfer,
}

// String returns the stored value.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a supported payment method.
func (m PaymentMethod) IsValid() bool {
	return oneOf(validPaymentMethods, m)
}

// ParsePaymentMethod converts raw input into PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", validPaymentMethods, value)
}
