package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/angelmondragon/pos-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const casAttempts = 3

// MovementInput is one ledger posting.
type MovementInput struct {
	ProductID uuid.UUID
	Direction enums.MovementDirection
	Quantity  int
	Reason    enums.MovementReason
	ActorID   uuid.UUID
	SaleID    *uuid.UUID
	Note      *string
}

// StockResult describes the effect of one stock application.
type StockResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Previous  int       `json:"previous"`
	Quantity  int       `json:"quantity"`
	Clamped   bool      `json:"clamped"`
	Shortfall int       `json:"shortfall,omitempty"`
}

// Posting is a movement together with its stock effect.
type Posting struct {
	MovementID uuid.UUID   `json:"movement_id"`
	Stock      StockResult `json:"stock"`
}

// AdjustInput is a manual stock entry or exit outside of any sale.
type AdjustInput struct {
	ProductID uuid.UUID
	Direction enums.MovementDirection
	Quantity  int
	Reason    enums.MovementReason
	Note      *string
}

type activityRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Ledger owns every write to inventory_movements and stock_levels.
type Ledger struct {
	repo     *Repository
	dbClient *db.Client
	audit    activityRecorder
	events   eventEmitter
	metrics  *metrics.InventoryMetrics
	logg     *logger.Logger
	location string
}

// LedgerParams groups the ledger collaborators.
type LedgerParams struct {
	Repo     *Repository
	DB       *db.Client
	Audit    activityRecorder
	Events   eventEmitter
	Metrics  *metrics.InventoryMetrics
	Logger   *logger.Logger
	Location string
}

// NewLedger constructs the inventory ledger.
func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Ledger{
		repo:     params.Repo,
		dbClient: params.DB,
		audit:    params.Audit,
		events:   params.Events,
		metrics:  params.Metrics,
		logg:     params.Logger,
		location: params.Location,
	}, nil
}

// WithTx returns a ledger whose writes go through tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	cp := *l
	cp.repo = l.repo.WithTx(tx)
	return &cp
}

// PostMovement validates and appends one movement, returning its id.
func (l *Ledger) PostMovement(ctx context.Context, in MovementInput) (uuid.UUID, error) {
	if err := validateMovement(in); err != nil {
		return uuid.Nil, err
	}
	exists, err := l.repo.ProductExists(ctx, in.ProductID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !exists {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInvalidMovement, "product does not exist").
			WithDetails(map[string]any{"product_id": in.ProductID.String()})
	}

	movement := &models.InventoryMovement{
		ID:        uuid.New(),
		ProductID: in.ProductID,
		Direction: in.Direction,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		ActorID:   in.ActorID,
		SaleID:    in.SaleID,
		Note:      in.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.InsertMovement(ctx, movement); err != nil {
		return uuid.Nil, err
	}
	l.metrics.IncMovement(string(in.Direction), string(in.Reason))
	return movement.ID, nil
}

// ApplyToStock applies a quantity change to the product's stock row. Outbound
// changes never take the quantity below zero; when they would, the result is
// clamped and reported.
func (l *Ledger) ApplyToStock(ctx context.Context, productID uuid.UUID, direction enums.MovementDirection, qty int) (StockResult, error) {
	return l.applyToStock(ctx, productID, direction, qty, clampRef{})
}

// Post runs PostMovement then ApplyToStock through tx.
func (l *Ledger) Post(ctx context.Context, tx *gorm.DB, in MovementInput) (*Posting, error) {
	return l.WithTx(tx).post(ctx, tx, in)
}

type clampRef struct {
	tx      *gorm.DB
	actorID *uuid.UUID
	saleID  *uuid.UUID
}

func (l *Ledger) post(ctx context.Context, tx *gorm.DB, in MovementInput) (*Posting, error) {
	movementID, err := l.PostMovement(ctx, in)
	if err != nil {
		return nil, err
	}
	actor := in.ActorID
	stock, err := l.applyToStock(ctx, in.ProductID, in.Direction, in.Quantity, clampRef{tx: tx, actorID: &actor, saleID: in.SaleID})
	if err != nil {
		return nil, err
	}
	return &Posting{MovementID: movementID, Stock: stock}, nil
}

func (l *Ledger) applyToStock(ctx context.Context, productID uuid.UUID, direction enums.MovementDirection, qty int, ref clampRef) (StockResult, error) {
	result := StockResult{ProductID: productID}
	if qty <= 0 {
		return result, pkgerrors.New(pkgerrors.CodeInvalidMovement, "quantity must be a positive integer").
			WithDetails(map[string]any{"quantity": qty})
	}
	if !direction.IsValid() {
		return result, pkgerrors.New(pkgerrors.CodeInvalidMovement, "invalid movement direction").
			WithDetails(map[string]any{"direction": direction})
	}

	if direction == enums.MovementIn {
		if err := l.repo.Increment(ctx, productID, qty, l.location); err != nil {
			return result, err
		}
		level, err := l.repo.FindStock(ctx, productID)
		if err != nil {
			return result, err
		}
		if level != nil {
			result.Quantity = level.Quantity
		}
		result.Previous = result.Quantity - qty
		return result, nil
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		ok, err := l.repo.DecrementIfAvailable(ctx, productID, qty)
		if err != nil {
			return result, err
		}
		if ok {
			level, err := l.repo.FindStock(ctx, productID)
			if err != nil {
				return result, err
			}
			if level != nil {
				result.Quantity = level.Quantity
			}
			result.Previous = result.Quantity + qty
			return result, nil
		}

		level, err := l.repo.FindStock(ctx, productID)
		if err != nil {
			return result, err
		}
		if level == nil {
			created, err := l.repo.CreateStock(ctx, &models.StockLevel{
				ProductID: productID,
				Location:  l.location,
				UpdatedAt: time.Now().UTC(),
			})
			if err != nil {
				return result, err
			}
			if !created {
				continue
			}
			result.Clamped = true
			result.Shortfall = qty
			return result, l.reportClamp(ctx, ref, qty, result)
		}
		if level.Quantity >= qty {
			continue
		}

		swapped, err := l.repo.CompareAndSet(ctx, productID, level.Quantity, 0)
		if err != nil {
			return result, err
		}
		if !swapped {
			continue
		}
		result.Previous = level.Quantity
		result.Quantity = 0
		result.Clamped = true
		result.Shortfall = qty - level.Quantity
		return result, l.reportClamp(ctx, ref, qty, result)
	}
	return result, fmt.Errorf("stock for product %s changed concurrently %d times", productID, casAttempts)
}

// reportClamp makes a clamped decrement visible: warn log, metric, activity
// entry and outbox event.
func (l *Ledger) reportClamp(ctx context.Context, ref clampRef, requested int, result StockResult) error {
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"product_id": result.ProductID.String(),
		"requested":  requested,
		"previous":   result.Previous,
		"shortfall":  result.Shortfall,
	})
	if ref.saleID != nil {
		logCtx = l.logg.WithSaleID(logCtx, ref.saleID.String())
	}
	l.logg.Warn(logCtx, "inventory.stock.clamped")
	l.metrics.IncClamp()

	productID := result.ProductID
	detail := fmt.Sprintf("outbound %d exceeded stock %d; clamped to 0 (shortfall %d)", requested, result.Previous, result.Shortfall)
	if ref.saleID != nil {
		detail += fmt.Sprintf(" sale %s", ref.saleID)
	}
	if err := l.audit.Record(ctx, l.handle(ref.tx), audit.Entry{
		ActorID:  ref.actorID,
		Action:   enums.ActivityStockClamp,
		Entity:   audit.EntityStockLevel,
		EntityID: &productID,
		Detail:   detail,
	}); err != nil {
		return fmt.Errorf("record stock clamp: %w", err)
	}

	var actor *outbox.ActorRef
	if ref.actorID != nil {
		actor = &outbox.ActorRef{UserID: *ref.actorID}
	}
	if err := l.events.Emit(ctx, l.handle(ref.tx), outbox.DomainEvent{
		EventType:     enums.EventStockClamped,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Actor:         actor,
		Data: payloads.StockClampedEvent{
			ProductID: productID,
			SaleID:    ref.saleID,
			Requested: requested,
			Previous:  result.Previous,
			Shortfall: result.Shortfall,
		},
	}); err != nil {
		return fmt.Errorf("emit stock clamp: %w", err)
	}
	return nil
}

func (l *Ledger) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return l.repo.db
}

// Adjust records a manual stock entry or exit. Only elevated users may adjust,
// and the check happens before anything is written.
func (l *Ledger) Adjust(ctx context.Context, identity types.Identity, in AdjustInput) (*Posting, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "acting user required")
	}
	if !identity.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "stock adjustments require an elevated role")
	}
	if in.Reason == enums.MovementReasonSale || in.Reason == enums.MovementReasonInitial {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMovement, "reason is reserved for checkout and product creation").
			WithDetails(map[string]any{"reason": in.Reason})
	}
	if in.Note != nil {
		trimmed := strings.TrimSpace(*in.Note)
		if trimmed == "" {
			in.Note = nil
		} else {
			in.Note = &trimmed
		}
	}

	var posting *Posting
	err := l.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		posting, err = l.Post(ctx, tx, MovementInput{
			ProductID: in.ProductID,
			Direction: in.Direction,
			Quantity:  in.Quantity,
			Reason:    in.Reason,
			ActorID:   identity.UserID,
			Note:      in.Note,
		})
		if err != nil {
			return err
		}
		actor := identity.UserID
		productID := in.ProductID
		return l.audit.Record(ctx, tx, audit.Entry{
			ActorID:  &actor,
			Action:   enums.ActivityMovement,
			Entity:   audit.EntityMovement,
			EntityID: &productID,
			Detail: fmt.Sprintf("%s %d (%s) by %s; stock %d -> %d",
				in.Direction, in.Quantity, in.Reason, identity.Name, posting.Stock.Previous, posting.Stock.Quantity),
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock adjustment")
	}

	logCtx := l.logg.WithActor(ctx, identity.UserID.String(), string(identity.Role), "")
	logCtx = l.logg.WithFields(logCtx, map[string]any{
		"product_id": in.ProductID.String(),
		"direction":  in.Direction,
		"reason":     in.Reason,
		"quantity":   in.Quantity,
	})
	l.logg.Info(logCtx, "inventory.adjusted")
	return posting, nil
}

// HistoryPage is one newest-first window of a product's movements.
type HistoryPage struct {
	Movements  []models.InventoryMovement
	NextCursor string
}

// History returns the product's movements, newest first.
func (l *Ledger) History(ctx context.Context, productID uuid.UUID, page pagination.Params) (*HistoryPage, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := l.repo.ListMovements(ctx, productID, cursor, page.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list movements")
	}
	rows, next := pagination.Trim(rows, page.Limit, func(m models.InventoryMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &HistoryPage{Movements: rows, NextCursor: next}, nil
}

// SignedBalance returns the sum of inbound minus outbound movements.
func (l *Ledger) SignedBalance(ctx context.Context, productID uuid.UUID) (int, error) {
	return l.repo.SignedBalance(ctx, productID)
}

func validateMovement(in MovementInput) error {
	if in.ProductID == uuid.Nil {
		return invalidMovement("product id is required", "product_id", nil)
	}
	if in.Quantity <= 0 {
		return invalidMovement("quantity must be a positive integer", "quantity", in.Quantity)
	}
	if !in.Direction.IsValid() {
		return invalidMovement("invalid movement direction", "direction", in.Direction)
	}
	if !in.Reason.IsValid() {
		return invalidMovement("invalid movement reason", "reason", in.Reason)
	}
	if !in.Reason.Allows(in.Direction) {
		return invalidMovement(fmt.Sprintf("reason %s cannot move stock %s", in.Reason, in.Direction), "reason", in.Reason)
	}
	if in.ActorID == uuid.Nil {
		return invalidMovement("acting user is required", "actor_id", nil)
	}
	return nil
}

func invalidMovement(msg, field string, value any) error {
	details := map[string]any{"field": field}
	if value != nil {
		details["value"] = value
	}
	return pkgerrors.New(pkgerrors.CodeInvalidMovement, msg).WithDetails(details)
}
