package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type cartStore interface {
	With(terminalID string, fn func(c *cart.Cart) error) error
}

type stockSnapshot interface {
	Snapshot(ctx context.Context, productIDs ...uuid.UUID) (map[uuid.UUID]catalog.ProductView, error)
}

type cartScanner interface {
	stockSnapshot
	ScanForCart(ctx context.Context, code string) (catalog.ProductView, error)
}

type cartLineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	TerminalID string             `json:"terminal_id"`
	Lines      []cartLineResponse `json:"lines"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	Tax        decimal.Decimal    `json:"tax"`
	Total      decimal.Decimal    `json:"total"`
}

func newCartResponse(terminalID string, c *cart.Cart) cartResponse {
	lines := c.Lines()
	out := cartResponse{TerminalID: terminalID, Lines: make([]cartLineResponse, 0, len(lines))}
	for _, line := range lines {
		out.Lines = append(out.Lines, cartLineResponse{
			ProductID: line.ProductID,
			Code:      line.Code,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal(),
		})
	}
	totals := c.Totals()
	out.Subtotal = totals.Subtotal
	out.Tax = totals.Tax
	out.Total = totals.Total
	return out
}

func CartGet(carts cartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var resp cartResponse
		_ = carts.With(terminal, func(c *cart.Cart) error {
			resp = newCartResponse(terminal, c)
			return nil
		})
		responses.WriteSuccess(w, resp)
	}
}

type scanRequest struct {
	Code string `json:"code" validate:"required,max=64,productcode"`
}

// CartScan resolves a scanned code and adds one unit of the product.
func CartScan(carts cartStore, svc cartScanner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload scanRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ScanForCart(r.Context(), strings.TrimSpace(payload.Code))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var resp cartResponse
		err = carts.With(terminal, func(c *cart.Cart) error {
			product := cart.Product{ID: view.ID, Code: view.Code, Name: view.Name, Price: view.Price}
			if err := c.AddOrIncrement(product, view.Quantity); err != nil {
				return err
			}
			resp = newCartResponse(terminal, c)
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartSetQuantity sets a line's quantity, clamped to the stock on hand now.
func CartSetQuantity(carts cartStore, svc stockSnapshot, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Snapshot(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		available := 0
		if view, ok := snapshot[productID]; ok && view.IsActive {
			available = view.Quantity
		}

		var resp cartResponse
		err = carts.With(terminal, func(c *cart.Cart) error {
			if _, err := c.SetQuantity(productID, payload.Quantity, available); err != nil {
				return err
			}
			resp = newCartResponse(terminal, c)
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func CartRemoveLine(carts cartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var resp cartResponse
		_ = carts.With(terminal, func(c *cart.Cart) error {
			c.Remove(productID)
			resp = newCartResponse(terminal, c)
			return nil
		})
		responses.WriteSuccess(w, resp)
	}
}

func CartClear(carts cartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminal, err := terminalParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		_ = carts.With(terminal, func(c *cart.Cart) error {
			c.Clear()
			return nil
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
