package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/checkout"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

type directTx struct{}

func (directTx) Run(_ context.Context, fn func(tx *gorm.DB) error) error    { return fn(nil) }
func (directTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

// memoryBackend records what a commit writes and decrements stub stock.
type memoryBackend struct {
	mu     sync.Mutex
	stock  *stubStock
	sales  []models.Sale
	lines  []models.SaleLine
	events []outbox.DomainEvent
}

func (m *memoryBackend) InsertHeader(_ context.Context, _ *gorm.DB, sale *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, *sale)
	return nil
}

func (m *memoryBackend) InsertLines(_ context.Context, _ *gorm.DB, lines []models.SaleLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, lines...)
	return nil
}

func (m *memoryBackend) Post(_ context.Context, _ *gorm.DB, in inventory.MovementInput) (*inventory.Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.stock.byID[in.ProductID].Quantity
	m.stock.set(in.ProductID, prev-in.Quantity)
	return &inventory.Posting{MovementID: uuid.New(), Stock: inventory.StockResult{ProductID: in.ProductID, Previous: prev, Quantity: prev - in.Quantity}}, nil
}

func (m *memoryBackend) Record(context.Context, *gorm.DB, audit.Entry) error { return nil }

func (m *memoryBackend) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type countingStarter struct {
	orch  *checkout.Orchestrator
	calls int
}

func (c *countingStarter) NewSession(ct *cart.Cart) *checkout.Session {
	c.calls++
	return c.orch.NewSession(ct)
}

func newCheckoutHarness(t *testing.T, views ...catalog.ProductView) (*cart.Registry, *stubStock, *memoryBackend, *countingStarter) {
	t.Helper()
	stock := newStubStock(views...)
	backend := &memoryBackend{stock: stock}
	orch, err := checkout.NewOrchestrator(checkout.Params{
		Tx:     directTx{},
		Sales:  backend,
		Ledger: backend,
		Audit:  backend,
		Outbox: backend,
		Logger: testLogger(),
	})
	require.NoError(t, err)
	return cart.NewRegistry(iva19), stock, backend, &countingStarter{orch: orch}
}

func fillCart(t *testing.T, carts *cart.Registry, terminal string, v catalog.ProductView, qty int) {
	t.Helper()
	require.NoError(t, carts.With(terminal, func(c *cart.Cart) error {
		for i := 0; i < qty; i++ {
			if err := c.AddOrIncrement(cart.Product{ID: v.ID, Code: v.Code, Name: v.Name, Price: v.Price}, v.Quantity); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestCheckoutCommitWritesSaleAndClearsCart(t *testing.T) {
	milk := view("780", 4500, 1)
	carts, stock, backend, starter := newCheckoutHarness(t, milk)
	fillCart(t, carts, "T1", milk, 1)

	handler := CheckoutCommit(carts, stock, starter, testLogger())
	rec := serve(handler, newRequest(http.MethodPost, "/api/terminals/T1/checkout", `{"payment_method":"cash"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt checkout.Receipt
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &receipt))
	assert.True(t, receipt.Subtotal.Equal(decimal.NewFromInt(4500)))
	assert.True(t, receipt.Tax.Equal(decimal.NewFromInt(855)))
	assert.True(t, receipt.Total.Equal(decimal.NewFromInt(5355)))
	assert.Equal(t, enums.PaymentMethodCash, receipt.PaymentMethod)
	assert.Equal(t, cashier.Name, receipt.CashierName)

	require.Len(t, backend.sales, 1)
	assert.Len(t, backend.lines, 1)
	assert.Len(t, backend.events, 1)
	assert.Equal(t, 0, stock.byID[milk.ID].Quantity)

	require.NoError(t, carts.With("T1", func(c *cart.Cart) error {
		assert.True(t, c.IsEmpty())
		return nil
	}))
}

func TestCheckoutRevalidatesStockBeforeCommit(t *testing.T) {
	a, b := view("A", 100, 3), view("B", 200, 2)
	carts, stock, backend, starter := newCheckoutHarness(t, a, b)
	fillCart(t, carts, "T1", a, 3)
	fillCart(t, carts, "T1", b, 1)

	// Another terminal sold two units of A in the meantime.
	stock.set(a.ID, 1)

	handler := CheckoutCommit(carts, stock, starter, testLogger())
	rec := serve(handler, newRequest(http.MethodPost, "/", `{"payment_method":"card"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusConflict, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), env.Error.Code)
	assert.Equal(t, []any{a.ID.String()}, env.Error.Details["product_ids"])
	assert.Equal(t, 0, starter.calls, "orchestrator must not be invoked")
	assert.Empty(t, backend.sales)

	require.NoError(t, carts.With("T1", func(c *cart.Cart) error {
		assert.Len(t, c.Lines(), 2, "cart is left intact")
		return nil
	}))
}

func TestCheckoutRejectsDeactivatedProduct(t *testing.T) {
	a := view("A", 100, 3)
	carts, stock, _, starter := newCheckoutHarness(t, a)
	fillCart(t, carts, "T1", a, 1)
	v := stock.byID[a.ID]
	v.IsActive = false
	stock.byID[a.ID] = v

	rec := serve(CheckoutCommit(carts, stock, starter, testLogger()),
		newRequest(http.MethodPost, "/", `{"payment_method":"cash"}`, cashier, terminalParams(nil)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckoutEmptyCartIsPreconditionFailure(t *testing.T) {
	carts, stock, backend, starter := newCheckoutHarness(t)
	rec := serve(CheckoutCommit(carts, stock, starter, testLogger()),
		newRequest(http.MethodPost, "/", `{"payment_method":"cash"}`, cashier, terminalParams(nil)))
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, string(pkgerrors.CodePreconditionFailed), decodeEnvelope(t, rec).Error.Code)
	assert.Empty(t, backend.sales)
}

func TestCheckoutRequestValidation(t *testing.T) {
	a := view("A", 100, 3)
	carts, stock, _, starter := newCheckoutHarness(t, a)
	fillCart(t, carts, "T1", a, 1)
	handler := CheckoutCommit(carts, stock, starter, testLogger())

	rec := serve(handler, newRequest(http.MethodPost, "/", `{"payment_method":"bitcoin"}`, cashier, terminalParams(nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(handler, newRequest(http.MethodPost, "/", `{}`, cashier, terminalParams(nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(handler, newRequest(http.MethodPost, "/", `{"payment_method":"cash"}`, types.Identity{}, terminalParams(nil)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, starter.calls)
}
