package enums

// ActivityAction maps to activity_log.action.
type ActivityAction string

const (
	ActivityCreate     ActivityAction = "create"
	ActivityUpdate     ActivityAction = "update"
	ActivityDeactivate ActivityAction = "deactivate"
	ActivityMovement   ActivityAction = "movement"
	ActivitySale       ActivityAction = "sale"
	ActivityStockClamp ActivityAction = "stock_clamp"
)

var validActivityActions = []ActivityAction{
	ActivityCreate,
	ActivityUpdate,
	ActivityDeactivate,
	ActivityMovement,
	ActivitySale,
	ActivityStockClamp,
}

// IsValid reports whether the value is a known activity action.
func (a ActivityAction) IsValid() bool {
	return oneOf(validActivityActions, a)
}

// ParseActivityAction converts raw input into ActivityAction.
func ParseActivityAction(value string) (ActivityAction, error) {
	return parse("activity action", validActivityActions, value)
}
