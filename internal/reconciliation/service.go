// Package reconciliation compares stock rows, ledger movements and sales and
// reports where they disagree. It never repairs anything.
package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	KindStockDrift          = "stock_drift"
	KindMissingSaleMovement = "missing_sale_movement"
	KindSaleWithoutLines    = "sale_without_lines"
	defaultLookback         = 72 * time.Hour
	defaultSaleLimit        = 500
)

type stockReader interface {
	ListStock(ctx context.Context) ([]models.StockLevel, error)
	SignedBalances(ctx context.Context) ([]inventory.ProductBalance, error)
	ListSaleMovements(ctx context.Context, saleIDs []uuid.UUID) ([]models.InventoryMovement, error)
}

type saleReader interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.Sale, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockDrift is a product whose stock row disagrees with its movement balance.
type StockDrift struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Balance   int       `json:"balance"`
}

// MissingMovement is a sale line with no matching sale movement.
type MissingMovement struct {
	SaleID    uuid.UUID `json:"sale_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// EmptySale is a completed sale header with no stored lines.
type EmptySale struct {
	SaleID uuid.UUID `json:"sale_id"`
	Total  string    `json:"total"`
}

// Report is the outcome of one reconciliation pass. NewAnomalies counts the
// findings not present in the previous pass of the same Service; only those
// are counted in metrics and queued as events.
type Report struct {
	StartedAt         time.Time         `json:"started_at"`
	SalesScanned      int               `json:"sales_scanned"`
	ProductsScanned   int               `json:"products_scanned"`
	StockDrift        []StockDrift      `json:"stock_drift"`
	MissingMovements  []MissingMovement `json:"missing_movements"`
	SalesWithoutLines []EmptySale       `json:"sales_without_lines"`
	NewAnomalies      int               `json:"new_anomalies"`
}

// Clean reports whether no anomaly was found.
func (r Report) Clean() bool {
	return len(r.StockDrift) == 0 && len(r.MissingMovements) == 0 && len(r.SalesWithoutLines) == 0
}

// finding is one anomaly ready to log and queue. key identifies it across
// passes.
type finding struct {
	key       string
	aggregate enums.OutboxAggregateType
	id        uuid.UUID
	message   string
	fields    map[string]any
	event     payloads.ReconciliationDriftEvent
}

type Params struct {
	Stock    stockReader
	Sales    saleReader
	Outbox   outboxPublisher
	DB       txRunner
	Metrics  *metrics.InventoryMetrics
	Logger   *logger.Logger
	Lookback time.Duration
	Limit    int
}

type Service struct {
	stock    stockReader
	sales    saleReader
	outbox   outboxPublisher
	db       txRunner
	metrics  *metrics.InventoryMetrics
	logg     *logger.Logger
	lookback time.Duration
	limit    int
	now      func() time.Time

	mu       sync.Mutex
	reported map[string]struct{}
}

// NewService wires the reconciler. Outbox and DB are optional together; when
// both are set every anomaly is also queued as a reconciliation_drift event.
func NewService(p Params) (*Service, error) {
	if p.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if p.Sales == nil {
		return nil, fmt.Errorf("sale reader required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if (p.Outbox == nil) != (p.DB == nil) {
		return nil, fmt.Errorf("outbox and db runner must be provided together")
	}
	if p.Lookback <= 0 {
		p.Lookback = defaultLookback
	}
	if p.Limit <= 0 {
		p.Limit = defaultSaleLimit
	}
	return &Service{
		stock:    p.Stock,
		sales:    p.Sales,
		outbox:   p.Outbox,
		db:       p.DB,
		metrics:  p.Metrics,
		logg:     p.Logger,
		lookback: p.Lookback,
		limit:    p.Limit,
		now:      time.Now,
		reported: make(map[string]struct{}),
	}, nil
}

// Run scans for stock drift and partially committed sales. An anomaly that
// persists across passes is logged every time but queued and counted once.
func (s *Service) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report := Report{StartedAt: s.now().UTC()}

	drift, scanned, err := s.stockDrift(ctx)
	if err != nil {
		return report, fmt.Errorf("stock drift: %w", err)
	}
	report.StockDrift = drift
	report.ProductsScanned = scanned

	missing, empty, sales, err := s.saleGaps(ctx, report.StartedAt.Add(-s.lookback))
	if err != nil {
		return report, fmt.Errorf("sale movements: %w", err)
	}
	report.MissingMovements = missing
	report.SalesWithoutLines = empty
	report.SalesScanned = sales

	current := make(map[string]struct{})
	var errs error
	for _, f := range findings(report) {
		current[f.key] = struct{}{}
		s.logg.Warn(s.logg.WithFields(ctx, f.fields), f.message)
		if _, seen := s.reported[f.key]; seen {
			continue
		}
		if err := s.emit(ctx, f); err != nil {
			errs = multierr.Append(errs, err)
			delete(current, f.key)
			continue
		}
		report.NewAnomalies++
		s.metrics.AddAnomalies(f.event.Kind, 1)
	}
	s.reported = current

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"products_scanned":    report.ProductsScanned,
		"sales_scanned":       report.SalesScanned,
		"stock_drift":         len(report.StockDrift),
		"missing_movements":   len(report.MissingMovements),
		"sales_without_lines": len(report.SalesWithoutLines),
		"new_anomalies":       report.NewAnomalies,
	}), "reconciliation.complete")
	return report, errs
}

func findings(report Report) []finding {
	var out []finding
	for _, d := range report.StockDrift {
		productID := d.ProductID
		out = append(out, finding{
			key:       fmt.Sprintf("%s:%s:%d:%d", KindStockDrift, productID, d.Quantity, d.Balance),
			aggregate: enums.AggregateProduct,
			id:        productID,
			message:   "reconciliation.stock.drift",
			fields: map[string]any{
				"product_id": productID.String(),
				"quantity":   d.Quantity,
				"balance":    d.Balance,
			},
			event: payloads.ReconciliationDriftEvent{
				Kind:      KindStockDrift,
				ProductID: &productID,
				Expected:  d.Balance,
				Actual:    d.Quantity,
			},
		})
	}
	for _, m := range report.MissingMovements {
		productID, saleID := m.ProductID, m.SaleID
		out = append(out, finding{
			key:       fmt.Sprintf("%s:%s:%s", KindMissingSaleMovement, saleID, productID),
			aggregate: enums.AggregateProduct,
			id:        productID,
			message:   "reconciliation.sale.movement_missing",
			fields: map[string]any{
				"product_id": productID.String(),
				"sale_id":    saleID.String(),
				"quantity":   m.Quantity,
			},
			event: payloads.ReconciliationDriftEvent{
				Kind:      KindMissingSaleMovement,
				ProductID: &productID,
				SaleID:    &saleID,
				Expected:  m.Quantity,
				Actual:    0,
				Detail:    "sale line has no matching stock movement",
			},
		})
	}
	for _, e := range report.SalesWithoutLines {
		saleID := e.SaleID
		out = append(out, finding{
			key:       fmt.Sprintf("%s:%s", KindSaleWithoutLines, saleID),
			aggregate: enums.AggregateSale,
			id:        saleID,
			message:   "reconciliation.sale.lines_missing",
			fields: map[string]any{
				"sale_id": saleID.String(),
				"total":   e.Total,
			},
			event: payloads.ReconciliationDriftEvent{
				Kind:   KindSaleWithoutLines,
				SaleID: &saleID,
				Detail: "completed sale has no lines; total " + e.Total,
			},
		})
	}
	return out
}

func (s *Service) stockDrift(ctx context.Context) ([]StockDrift, int, error) {
	levels, err := s.stock.ListStock(ctx)
	if err != nil {
		return nil, 0, err
	}
	balances, err := s.stock.SignedBalances(ctx)
	if err != nil {
		return nil, 0, err
	}

	quantities := make(map[uuid.UUID]int, len(levels))
	for _, level := range levels {
		quantities[level.ProductID] = level.Quantity
	}
	ledger := make(map[uuid.UUID]int, len(balances))
	for _, b := range balances {
		ledger[b.ProductID] = b.Balance
		if _, ok := quantities[b.ProductID]; !ok {
			quantities[b.ProductID] = 0
		}
	}

	var drift []StockDrift
	for productID, qty := range quantities {
		if balance := ledger[productID]; balance != qty {
			drift = append(drift, StockDrift{ProductID: productID, Quantity: qty, Balance: balance})
		}
	}
	sort.Slice(drift, func(i, j int) bool {
		return drift[i].ProductID.String() < drift[j].ProductID.String()
	})
	return drift, len(quantities), nil
}

type saleProduct struct {
	sale    uuid.UUID
	product uuid.UUID
}

// saleGaps finds sale lines with no sale movement and completed sales that
// were stored without any lines.
func (s *Service) saleGaps(ctx context.Context, since time.Time) ([]MissingMovement, []EmptySale, int, error) {
	sales, err := s.sales.ListSince(ctx, since, s.limit)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(sales) == 0 {
		return nil, nil, 0, nil
	}
	ids := make([]uuid.UUID, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	movements, err := s.stock.ListSaleMovements(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}
	posted := make(map[saleProduct]int, len(movements))
	for _, mv := range movements {
		if mv.SaleID == nil {
			continue
		}
		posted[saleProduct{sale: *mv.SaleID, product: mv.ProductID}] += mv.Quantity
	}

	var (
		missing []MissingMovement
		empty   []EmptySale
	)
	for _, sale := range sales {
		if len(sale.Lines) == 0 {
			empty = append(empty, EmptySale{SaleID: sale.ID, Total: sale.Total.String()})
			continue
		}
		expected := make(map[uuid.UUID]int)
		var order []uuid.UUID
		for _, line := range sale.Lines {
			if _, seen := expected[line.ProductID]; !seen {
				order = append(order, line.ProductID)
			}
			expected[line.ProductID] += line.Quantity
		}
		for _, productID := range order {
			if posted[saleProduct{sale: sale.ID, product: productID}] == 0 {
				missing = append(missing, MissingMovement{
					SaleID:    sale.ID,
					ProductID: productID,
					Quantity:  expected[productID],
				})
			}
		}
	}
	return missing, empty, len(sales), nil
}

func (s *Service) emit(ctx context.Context, f finding) error {
	if s.outbox == nil {
		return nil
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationDrift,
			AggregateType: f.aggregate,
			AggregateID:   f.id,
			Data:          f.event,
			OccurredAt:    s.now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("queue %s event for %s %s: %w", f.event.Kind, f.aggregate, f.id, err)
	}
	return nil
}
