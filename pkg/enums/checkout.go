package enums

// CheckoutState tracks a single checkout session.
type CheckoutState string

const (
	CheckoutStateIdle            CheckoutState = "idle"
	CheckoutStateAwaitingPayment CheckoutState = "awaiting_payment"
	CheckoutStateCommitting      CheckoutState = "committing"
	CheckoutStateSuccess         CheckoutState = "success"
	CheckoutStateFailed          CheckoutState = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSuccess || s == CheckoutStateFailed
}

// CommitStep names the ordered writes performed while committing a sale.
type CommitStep string

const (
	CommitStepSaleHeader     CommitStep = "sale_header"
	CommitStepSaleLines      CommitStep = "sale_lines"
	CommitStepStockMovements CommitStep = "stock_movements"
	CommitStepActivityLog    CommitStep = "activity_log"
	CommitStepReceiptEvent   CommitStep = "receipt_event"
)

// CommitSteps lists the steps in execution order.
var CommitSteps = []CommitStep{
	CommitStepSaleHeader,
	CommitStepSaleLines,
	CommitStepStockMovements,
	CommitStepActivityLog,
	CommitStepReceiptEvent,
}

// CommitMode selects whether the commit sequence runs inside a storage transaction.
type CommitMode string

const (
	CommitModeSequential    CommitMode = "sequential"
	CommitModeTransactional CommitMode = "transactional"
)

// IsValid reports whether the value is a known commit mode.
func (m CommitMode) IsValid() bool {
	return m == CommitModeSequential || m == CommitModeTransactional
}

// CommitStepTransactionCommit is reported when every step ran but the
// enclosing transaction failed to commit.
const CommitStepTransactionCommit CommitStep = "transaction_commit"
