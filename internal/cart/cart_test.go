package cart

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

var iva19 = TaxPolicy{Enabled: true, RatePercent: decimal.NewFromInt(19), Places: 0}

func product(price int64) Product {
	id := uuid.New()
	return Product{ID: id, Code: id.String()[:6], Name: "item", Price: decimal.NewFromInt(price)}
}

func TestAddOrIncrementBuildsSingleLine(t *testing.T) {
	c := New(iva19)
	x := product(1200)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.AddOrIncrement(x, 5))
	}

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.True(t, lines[0].Subtotal().Equal(decimal.NewFromInt(4800)))
}

func TestAddOrIncrementRespectsCeiling(t *testing.T) {
	c := New(iva19)
	x := product(1000)

	require.NoError(t, c.AddOrIncrement(x, 2))
	require.NoError(t, c.AddOrIncrement(x, 2))
	err := c.AddOrIncrement(x, 2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	line, ok := c.Line(x.ID)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)

	y := product(500)
	err = c.AddOrIncrement(y, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	_, ok = c.Line(y.ID)
	assert.False(t, ok)
}

func TestSetQuantityClampsToAvailableStock(t *testing.T) {
	c := New(iva19)
	x := product(1000)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.AddOrIncrement(x, 5))
	}

	applied, err := c.SetQuantity(x.ID, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	applied, err = c.SetQuantity(x.ID, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = c.SetQuantity(x.ID, 2, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 1, applied)

	_, err = c.SetQuantity(uuid.New(), 1, 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestQuantityNeverExceedsCeilingAcrossRandomCalls(t *testing.T) {
	c := New(NoTax)
	x := product(10)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		avail := rng.Intn(6)
		before, had := c.Line(x.ID)
		if rng.Intn(2) == 0 {
			err := c.AddOrIncrement(x, avail)
			after, _ := c.Line(x.ID)
			if err != nil {
				require.Equal(t, before.Quantity, after.Quantity)
				continue
			}
			require.LessOrEqual(t, after.Quantity, avail)
			continue
		}
		if !had {
			continue
		}
		applied, err := c.SetQuantity(x.ID, rng.Intn(10)-2, avail)
		if err != nil {
			require.Equal(t, before.Quantity, applied)
			continue
		}
		require.LessOrEqual(t, applied, avail)
		require.GreaterOrEqual(t, applied, 1)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	c := New(iva19)
	a, b, d := product(1), product(2), product(3)
	require.NoError(t, c.AddOrIncrement(a, 9))
	require.NoError(t, c.AddOrIncrement(b, 9))
	require.NoError(t, c.AddOrIncrement(d, 9))

	c.Remove(b.ID)
	once := c.Lines()
	c.Remove(b.ID)
	c.Remove(uuid.New())
	assert.Equal(t, once, c.Lines())
	require.Len(t, once, 2)
	assert.Equal(t, a.ID, once[0].ProductID)
	assert.Equal(t, d.ID, once[1].ProductID)

	require.NoError(t, c.AddOrIncrement(d, 9))
	line, _ := c.Line(d.ID)
	assert.Equal(t, 2, line.Quantity)
}

func TestTotalsWithTaxPolicy(t *testing.T) {
	c := New(iva19)
	first := product(1000)
	second := product(2500)
	require.NoError(t, c.AddOrIncrement(first, 10))
	require.NoError(t, c.AddOrIncrement(first, 10))
	require.NoError(t, c.AddOrIncrement(second, 10))

	totals := c.Totals()
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(4500)), totals.Subtotal.String())
	assert.True(t, totals.Tax.Equal(decimal.NewFromInt(855)), totals.Tax.String())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(5355)), totals.Total.String())

	untaxed := New(NoTax)
	require.NoError(t, untaxed.AddOrIncrement(first, 1))
	assert.True(t, untaxed.Totals().Total.Equal(decimal.NewFromInt(1000)))
}

func TestTaxRoundsToMinorUnit(t *testing.T) {
	policy := TaxPolicy{Enabled: true, RatePercent: decimal.NewFromInt(19), Places: 0}
	assert.Equal(t, "190", policy.Apply(decimal.NewFromInt(999)).String())

	cents := TaxPolicy{Enabled: true, RatePercent: decimal.RequireFromString("7.5"), Places: 2}
	assert.Equal(t, "0.75", cents.Apply(decimal.RequireFromString("9.99")).String())
}

func TestUnitPriceIsSnapshotAtAddTime(t *testing.T) {
	c := New(NoTax)
	x := product(1000)
	require.NoError(t, c.AddOrIncrement(x, 5))

	x.Price = decimal.NewFromInt(5000)
	require.NoError(t, c.AddOrIncrement(x, 5))

	line, _ := c.Line(x.ID)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, c.Totals().Total.Equal(decimal.NewFromInt(2000)))
}

func TestClearEmptiesCart(t *testing.T) {
	c := New(iva19)
	require.NoError(t, c.AddOrIncrement(product(1), 1))
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Totals().Total.IsZero())
}

func TestRegistrySerializesAccessPerTerminal(t *testing.T) {
	reg := NewRegistry(NoTax)
	x := product(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.With("caja-1", func(c *Cart) error {
				return c.AddOrIncrement(x, 1000)
			})
		}()
	}
	wg.Wait()

	err := reg.With("caja-1", func(c *Cart) error {
		line, ok := c.Line(x.ID)
		require.True(t, ok)
		assert.Equal(t, 50, line.Quantity)
		return nil
	})
	require.NoError(t, err)

	_ = reg.With("caja-2", func(c *Cart) error {
		assert.True(t, c.IsEmpty())
		return nil
	})
	assert.Equal(t, 2, reg.Len())
	reg.Discard("caja-1")
	assert.Equal(t, 1, reg.Len())
}
