package enums

// MovementDirection maps to the movement_direction column of inventory_movements.
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

var validMovementDirections = []MovementDirection{
	MovementIn,
	MovementOut,
}

// IsValid reports whether the value is a known direction.
func (d MovementDirection) IsValid() bool {
	return oneOf(validMovementDirections, d)
}

// Sign returns +1 for inbound and -1 for outbound movements.
func (d MovementDirection) Sign() int {
	if d == MovementOut {
		return -1
	}
	return 1
}

// ParseMovementDirection converts raw input into MovementDirection.
func ParseMovementDirection(value string) (MovementDirection, error) {
	return parse("movement direction", validMovementDirections, value)
}

// MovementReason classifies why stock moved.
type MovementReason string

const (
	MovementReasonPurchase   MovementReason = "purchase"
	MovementReasonSale       MovementReason = "sale"
	MovementReasonReturn     MovementReason = "return"
	MovementReasonAdjustment MovementReason = "adjustment"
	MovementReasonLoss       MovementReason = "loss"
	MovementReasonInitial    MovementReason = "initial"
)

var validMovementReasons = []MovementReason{
	MovementReasonPurchase,
	MovementReasonSale,
	MovementReasonReturn,
	MovementReasonAdjustment,
	MovementReasonLoss,
	MovementReasonInitial,
}

// IsValid reports whether the value is a known reason.
func (r MovementReason) IsValid() bool {
	return oneOf(validMovementReasons, r)
}

// Allows reports whether a movement with this reason may flow in the given direction.
// Adjustments are the only reason that can go either way.
func (r MovementReason) Allows(d MovementDirection) bool {
	switch r {
	case MovementReasonSale, MovementReasonLoss:
		return d == MovementOut
	case MovementReasonPurchase, MovementReasonReturn, MovementReasonInitial:
		return d == MovementIn
	case MovementReasonAdjustment:
		return d.IsValid()
	}
	return false
}

// ParseMovementReason converts raw input into MovementReason.
func ParseMovementReason(value string) (MovementReason, error) {
	return parse("movement reason", validMovementReasons, value)
}
