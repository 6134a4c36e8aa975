package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

var iva19 = cart.TaxPolicy{Enabled: true, RatePercent: decimal.NewFromInt(19)}

// stubStock serves both scans and snapshots from one in-memory table.
type stubStock struct {
	byID map[uuid.UUID]catalog.ProductView
}

func newStubStock(views ...catalog.ProductView) *stubStock {
	s := &stubStock{byID: make(map[uuid.UUID]catalog.ProductView)}
	for _, v := range views {
		s.byID[v.ID] = v
	}
	return s
}

func (s *stubStock) set(id uuid.UUID, qty int) {
	v := s.byID[id]
	v.Quantity = qty
	s.byID[id] = v
}

func (s *stubStock) ScanForCart(_ context.Context, code string) (catalog.ProductView, error) {
	for _, v := range s.byID {
		if v.Code == code && v.IsActive {
			if v.Quantity <= 0 {
				return catalog.ProductView{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock")
			}
			return v, nil
		}
	}
	return catalog.ProductView{}, pkgerrors.New(pkgerrors.CodeNotFound, "no active product for code")
}

func (s *stubStock) Snapshot(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID]catalog.ProductView, error) {
	out := make(map[uuid.UUID]catalog.ProductView, len(ids))
	for _, id := range ids {
		if v, ok := s.byID[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func view(code string, price int64, qty int) catalog.ProductView {
	return catalog.ProductView{ID: uuid.New(), Code: code, Name: "Producto " + code, Price: decimal.NewFromInt(price), Quantity: qty, IsActive: true}
}

func decodeCart(t *testing.T, body []byte) cartResponse {
	t.Helper()
	var env struct {
		Data cartResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Data
}

func terminalParams(extra map[string]string) map[string]string {
	params := map[string]string{"terminal": "T1"}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func TestCartScanAddsAndIncrements(t *testing.T) {
	logg := testLogger()
	milk := view("780", 1000, 2)
	stock := newStubStock(milk)
	carts := cart.NewRegistry(iva19)
	handler := CartScan(carts, stock, logg)

	for i := 0; i < 2; i++ {
		rec := serve(handler, newRequest(http.MethodPost, "/api/terminals/T1/cart/scan", `{"code":"780"}`, cashier, terminalParams(nil)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := serve(handler, newRequest(http.MethodPost, "/api/terminals/T1/cart/scan", `{"code":"780"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), decodeEnvelope(t, rec).Error.Code)

	rec = serve(CartGet(carts, logg), newRequest(http.MethodGet, "/api/terminals/T1/cart", "", cashier, terminalParams(nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeCart(t, rec.Body.Bytes())
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(2000)))
	assert.True(t, got.Tax.Equal(decimal.NewFromInt(380)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(2380)))
}

func TestCartScanUnknownCode(t *testing.T) {
	rec := serve(CartScan(cart.NewRegistry(cart.NoTax), newStubStock(), testLogger()),
		newRequest(http.MethodPost, "/api/terminals/T1/cart/scan", `{"code":"nope"}`, cashier, terminalParams(nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartSetQuantityClampsToFreshStock(t *testing.T) {
	logg := testLogger()
	bread := view("100", 500, 10)
	stock := newStubStock(bread)
	carts := cart.NewRegistry(cart.NoTax)
	rec := serve(CartScan(carts, stock, logg), newRequest(http.MethodPost, "/", `{"code":"100"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	stock.set(bread.ID, 3)
	params := terminalParams(map[string]string{"productId": bread.ID.String()})
	rec = serve(CartSetQuantity(carts, stock, logg), newRequest(http.MethodPut, "/", `{"quantity":8}`, cashier, params))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeCart(t, rec.Body.Bytes()).Lines[0].Quantity)

	rec = serve(CartSetQuantity(carts, stock, logg), newRequest(http.MethodPut, "/", `{"quantity":0}`, cashier, params))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeCart(t, rec.Body.Bytes()).Lines[0].Quantity)

	stock.set(bread.ID, 0)
	rec = serve(CartSetQuantity(carts, stock, logg), newRequest(http.MethodPut, "/", `{"quantity":2}`, cashier, params))
	assert.Equal(t, http.StatusConflict, rec.Code)

	missing := terminalParams(map[string]string{"productId": uuid.NewString()})
	rec = serve(CartSetQuantity(carts, stock, logg), newRequest(http.MethodPut, "/", `{"quantity":2}`, cashier, missing))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartRemoveAndClear(t *testing.T) {
	logg := testLogger()
	a, b := view("A", 100, 5), view("B", 200, 5)
	stock := newStubStock(a, b)
	carts := cart.NewRegistry(cart.NoTax)
	for _, code := range []string{"A", "B"} {
		rec := serve(CartScan(carts, stock, logg), newRequest(http.MethodPost, "/", `{"code":"`+code+`"}`, cashier, terminalParams(nil)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	params := terminalParams(map[string]string{"productId": a.ID.String()})
	for i := 0; i < 2; i++ {
		rec := serve(CartRemoveLine(carts, logg), newRequest(http.MethodDelete, "/", "", cashier, params))
		require.Equal(t, http.StatusOK, rec.Code)
		lines := decodeCart(t, rec.Body.Bytes()).Lines
		require.Len(t, lines, 1)
		assert.Equal(t, b.ID, lines[0].ProductID)
	}

	rec := serve(CartClear(carts, logg), newRequest(http.MethodDelete, "/", "", cashier, terminalParams(nil)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	_ = carts.With("T1", func(c *cart.Cart) error {
		assert.True(t, c.IsEmpty())
		return nil
	})
}

func TestCartTerminalsAreIsolated(t *testing.T) {
	logg := testLogger()
	stock := newStubStock(view("A", 100, 5))
	carts := cart.NewRegistry(cart.NoTax)
	rec := serve(CartScan(carts, stock, logg), newRequest(http.MethodPost, "/", `{"code":"A"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(CartGet(carts, logg), newRequest(http.MethodGet, "/", "", cashier, map[string]string{"terminal": "T2"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec.Body.Bytes()).Lines)
}

func TestCartRejectsForeignTerminal(t *testing.T) {
	req := newRequest(http.MethodGet, "/", "", cashier, terminalParams(nil))
	req = req.WithContext(middleware.WithTerminal(req.Context(), "T9"))
	rec := serve(CartGet(cart.NewRegistry(cart.NoTax), testLogger()), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
