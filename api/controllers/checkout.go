package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/checkout"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type checkoutStarter interface {
	NewSession(c *cart.Cart) *checkout.Session
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,paymentmethod"`
}

// CheckoutCommit turns the terminal's cart into a sale. Stock for every line
// is re-read first; the commit only starts when each line still fits. The
// Idempotency-Key header, when present, is the commit token.
func CheckoutCommit(carts cartStore, stock stockSnapshot, orch checkoutStarter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
				WithDetails(map[string]any{"field": "payment_method"}))
			return
		}
		token := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTerminalID(ctx, terminal)
		}

		var receipt *checkout.Receipt
		err = carts.With(terminal, func(c *cart.Cart) error {
			if err := revalidateStock(ctx, stock, c); err != nil {
				return err
			}
			session := orch.NewSession(c)
			if err := session.Begin(); err != nil {
				return err
			}
			if err := session.SelectPayment(method); err != nil {
				return err
			}
			var err error
			receipt, err = session.Commit(ctx, identity, token)
			return err
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// revalidateStock fails with InsufficientStock naming every line whose
// quantity exceeds the stock on hand. Inactive or missing products count as
// zero stock. An empty cart passes through to the session's own checks.
func revalidateStock(ctx context.Context, stock stockSnapshot, c *cart.Cart) error {
	lines := c.Lines()
	if len(lines) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	snapshot, err := stock.Snapshot(ctx, ids...)
	if err != nil {
		return err
	}

	var short []string
	for _, line := range lines {
		available := 0
		if view, ok := snapshot[line.ProductID]; ok && view.IsActive {
			available = view.Quantity
		}
		if line.Quantity > available {
			short = append(short, line.ProductID.String())
		}
	}
	if len(short) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "cart exceeds current stock").
			WithDetails(map[string]any{"product_ids": short})
	}
	return nil
}
