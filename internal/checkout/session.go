package checkout

import (
	"context"

	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

// Session is the checkout state machine for one cart:
// idle -> awaiting_payment -> committing -> success | failed.
// A session is owned by one terminal and is not safe for concurrent use.
type Session struct {
	orch    *Orchestrator
	cart    *cart.Cart
	state   enums.CheckoutState
	payment enums.PaymentMethod
	receipt *Receipt
	err     error
}

// NewSession starts an idle session over c.
func (o *Orchestrator) NewSession(c *cart.Cart) *Session {
	return &Session{orch: o, cart: c, state: enums.CheckoutStateIdle}
}

func (s *Session) State() enums.CheckoutState {
	return s.state
}

func (s *Session) PaymentMethod() enums.PaymentMethod {
	return s.payment
}

// Receipt returns the receipt of a successful commit.
func (s *Session) Receipt() *Receipt {
	return s.receipt
}

// Err returns the failure that moved the session to failed.
func (s *Session) Err() error {
	return s.err
}

// Begin opens the payment step.
func (s *Session) Begin() error {
	if s.state != enums.CheckoutStateIdle {
		return precondition("checkout can only begin from idle", s.state)
	}
	s.state = enums.CheckoutStateAwaitingPayment
	s.payment = ""
	return nil
}

// Cancel closes the payment step without touching the cart.
func (s *Session) Cancel() error {
	if s.state != enums.CheckoutStateAwaitingPayment {
		return precondition("only a checkout awaiting payment can be cancelled", s.state)
	}
	s.state = enums.CheckoutStateIdle
	s.payment = ""
	return nil
}

// SelectPayment records the tender for the pending checkout.
func (s *Session) SelectPayment(method enums.PaymentMethod) error {
	if s.state != enums.CheckoutStateAwaitingPayment {
		return precondition("payment can only be selected while awaiting payment", s.state)
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": method})
	}
	s.payment = method
	return nil
}

// Reset returns a finished session to idle so the terminal can start over.
func (s *Session) Reset() error {
	if !s.state.IsTerminal() {
		return precondition("only a finished checkout can be reset", s.state)
	}
	s.state = enums.CheckoutStateIdle
	s.payment = ""
	s.receipt = nil
	s.err = nil
	return nil
}

// Commit writes the sale. Precondition failures leave the session awaiting
// payment with nothing written. Once writing starts the outcome is success
// or failed; a failed commit is never retried or rolled back here.
func (s *Session) Commit(ctx context.Context, identity types.Identity, token string) (*Receipt, error) {
	if s.state != enums.CheckoutStateAwaitingPayment {
		return nil, precondition("checkout is not awaiting payment", s.state)
	}
	var missing []string
	if s.cart == nil || s.cart.IsEmpty() {
		missing = append(missing, "cart")
	}
	if identity.IsZero() {
		missing = append(missing, "identity")
	}
	if !s.payment.IsValid() {
		missing = append(missing, "payment_method")
	}
	if len(missing) > 0 {
		s.orch.metrics.IncCommit(metrics.OutcomePrecondition)
		return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "checkout preconditions not met").
			WithDetails(map[string]any{"missing": missing, "state": s.state})
	}

	s.state = enums.CheckoutStateCommitting
	receipt, err := s.orch.commit(ctx, s.cart, identity, s.payment, token)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeCommitStepFailed) {
			s.state = enums.CheckoutStateFailed
			s.err = err
			return nil, err
		}
		s.state = enums.CheckoutStateAwaitingPayment
		return nil, err
	}

	s.state = enums.CheckoutStateSuccess
	s.receipt = receipt
	s.cart.Clear()
	return receipt, nil
}

func precondition(msg string, state enums.CheckoutState) error {
	return pkgerrors.New(pkgerrors.CodePreconditionFailed, msg).
		WithDetails(map[string]any{"state": state})
}
