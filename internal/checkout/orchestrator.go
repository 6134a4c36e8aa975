package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	Run(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type saleWriter interface {
	InsertHeader(ctx context.Context, tx *gorm.DB, sale *models.Sale) error
	InsertLines(ctx context.Context, tx *gorm.DB, lines []models.SaleLine) error
}

type saleLookup interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error)
}

type stockPoster interface {
	Post(ctx context.Context, tx *gorm.DB, in inventory.MovementInput) (*inventory.Posting, error)
}

type activityRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type tokenGuard interface {
	Claim(ctx context.Context, token string) (bool, error)
	Complete(ctx context.Context, token, saleID string) error
	Lookup(ctx context.Context, token string) (string, error)
	Release(ctx context.Context, token string) error
}

// SalesWriter adapts the sales repository to the commit steps.
type SalesWriter struct {
	repo *sales.Repository
}

func NewSalesWriter(repo *sales.Repository) SalesWriter {
	return SalesWriter{repo: repo}
}

func (w SalesWriter) InsertHeader(ctx context.Context, tx *gorm.DB, sale *models.Sale) error {
	return w.repo.WithTx(tx).InsertHeader(ctx, sale)
}

func (w SalesWriter) InsertLines(ctx context.Context, tx *gorm.DB, lines []models.SaleLine) error {
	return w.repo.WithTx(tx).InsertLines(ctx, lines)
}

func (w SalesWriter) FindByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	return w.repo.FindByIdempotencyKey(ctx, key)
}

// StepFailure is attached to CommitStepFailed errors.
type StepFailure struct {
	Step           enums.CommitStep   `json:"step"`
	CompletedSteps []enums.CommitStep `json:"completed_steps"`
	SaleID         uuid.UUID          `json:"sale_id"`
	ProductID      *uuid.UUID         `json:"product_id,omitempty"`
	RolledBack     bool               `json:"rolled_back"`
	Cause          string             `json:"cause"`
}

// Params groups the orchestrator collaborators.
type Params struct {
	Tx            txRunner
	Sales         saleWriter
	Lookup        saleLookup
	Ledger        stockPoster
	Audit         activityRecorder
	Outbox        outboxPublisher
	Guard         tokenGuard
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
	Mode          enums.CommitMode
	CommitTimeout time.Duration
	Now           func() time.Time
}

// Orchestrator turns a finished cart into a sale, its stock movements, an
// activity entry and a receipt event, in that order.
type Orchestrator struct {
	tx      txRunner
	sales   saleWriter
	lookup  saleLookup
	ledger  stockPoster
	audit   activityRecorder
	outbox  outboxPublisher
	guard   tokenGuard
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	mode    enums.CommitMode
	timeout time.Duration
	now     func() time.Time
}

// NewOrchestrator validates and wires the collaborators. Guard is optional.
// Lookup defaults to Sales when the writer can also find sales by key.
func NewOrchestrator(p Params) (*Orchestrator, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Sales == nil {
		return nil, fmt.Errorf("sales writer required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if p.Audit == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Mode == "" {
		p.Mode = enums.CommitModeSequential
	}
	if !p.Mode.IsValid() {
		return nil, fmt.Errorf("invalid commit mode %q", p.Mode)
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Lookup == nil {
		p.Lookup, _ = p.Sales.(saleLookup)
	}
	return &Orchestrator{
		tx:      p.Tx,
		sales:   p.Sales,
		lookup:  p.Lookup,
		ledger:  p.Ledger,
		audit:   p.Audit,
		outbox:  p.Outbox,
		guard:   p.Guard,
		metrics: p.Metrics,
		logg:    p.Logger,
		mode:    p.Mode,
		timeout: p.CommitTimeout,
		now:     p.Now,
	}, nil
}

// Mode reports the configured commit mode.
func (o *Orchestrator) Mode() enums.CommitMode {
	return o.mode
}

type stepError struct {
	step      enums.CommitStep
	productID *uuid.UUID
	err       error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}

type commitPlan struct {
	sale    models.Sale
	lines   []models.SaleLine
	receipt Receipt
	actor   types.Identity
}

func (o *Orchestrator) plan(c *cart.Cart, identity types.Identity, method enums.PaymentMethod, token string) commitPlan {
	saleID := uuid.New()
	issuedAt := o.now().UTC()
	totals := c.Totals()
	cartLines := c.Lines()

	plan := commitPlan{actor: identity}
	plan.sale = models.Sale{
		ID:            saleID,
		UserID:        identity.UserID,
		CashierName:   identity.Name,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method,
		Status:        enums.SaleStatusCompleted,
		CreatedAt:     issuedAt,
	}
	if token != "" {
		key := token
		plan.sale.IdempotencyKey = &key
	}
	plan.receipt = Receipt{
		SaleID:        saleID,
		IssuedAt:      issuedAt,
		Lines:         make([]ReceiptLine, 0, len(cartLines)),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method,
		CashierName:   identity.Name,
	}
	for i, line := range cartLines {
		subtotal := line.Subtotal()
		plan.lines = append(plan.lines, models.SaleLine{
			ID:        uuid.New(),
			SaleID:    saleID,
			LineNo:    i + 1,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  subtotal,
		})
		plan.receipt.Lines = append(plan.receipt.Lines, ReceiptLine{
			ProductID: line.ProductID,
			Code:      line.Code,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  subtotal,
		})
	}
	return plan
}

// commit runs the ordered write sequence. Errors returned before the first
// write leave storage untouched; a *pkgerrors.Error with CodeCommitStepFailed
// means some steps may have been applied.
func (o *Orchestrator) commit(ctx context.Context, c *cart.Cart, identity types.Identity, method enums.PaymentMethod, token string) (*Receipt, error) {
	started := o.now()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	token = strings.TrimSpace(token)
	if token != "" && o.guard != nil {
		claimed, err := o.guard.Claim(ctx, token)
		if err != nil {
			o.metrics.IncCommit(metrics.OutcomePrecondition)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency token")
		}
		if !claimed {
			return nil, o.duplicate(ctx, token)
		}
	}

	plan := o.plan(c, identity, method, token)
	logCtx := o.logg.WithSaleID(ctx, plan.sale.ID.String())
	logCtx = o.logg.WithActor(logCtx, identity.UserID.String(), string(identity.Role), "")

	var completed []enums.CommitStep
	run := func(tx *gorm.DB) error {
		return o.runSteps(ctx, tx, plan, &completed)
	}

	var err error
	if o.mode == enums.CommitModeTransactional {
		err = o.tx.WithTx(ctx, run)
	} else {
		err = o.tx.Run(ctx, run)
	}
	o.metrics.ObserveCommit(o.now().Sub(started))
	if err != nil {
		return nil, o.fail(logCtx, plan, completed, token, err)
	}

	if token != "" && o.guard != nil {
		if gerr := o.guard.Complete(ctx, token, plan.sale.ID.String()); gerr != nil {
			o.logg.Warn(o.logg.WithField(logCtx, "error", gerr.Error()), "checkout.idempotency.complete_failed")
		}
	}
	o.metrics.IncCommit(metrics.OutcomeSuccess)
	o.logg.Info(o.logg.WithFields(logCtx, map[string]any{
		"lines":          len(plan.lines),
		"total":          plan.sale.Total.String(),
		"payment_method": string(method),
		"commit_mode":    string(o.mode),
	}), "checkout.committed")

	receipt := plan.receipt
	return &receipt, nil
}

func (o *Orchestrator) runSteps(ctx context.Context, tx *gorm.DB, plan commitPlan, completed *[]enums.CommitStep) error {
	step := func(name enums.CommitStep, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return &stepError{step: name, err: err}
		}
		if err := fn(); err != nil {
			var se *stepError
			if errors.As(err, &se) {
				return se
			}
			return &stepError{step: name, err: err}
		}
		*completed = append(*completed, name)
		return nil
	}

	if err := step(enums.CommitStepSaleHeader, func() error {
		sale := plan.sale
		return o.sales.InsertHeader(ctx, tx, &sale)
	}); err != nil {
		return err
	}

	if err := step(enums.CommitStepSaleLines, func() error {
		return o.sales.InsertLines(ctx, tx, plan.lines)
	}); err != nil {
		return err
	}

	if err := step(enums.CommitStepStockMovements, func() error {
		saleID := plan.sale.ID
		for _, line := range plan.lines {
			if err := ctx.Err(); err != nil {
				productID := line.ProductID
				return &stepError{step: enums.CommitStepStockMovements, productID: &productID, err: err}
			}
			if _, err := o.ledger.Post(ctx, tx, inventory.MovementInput{
				ProductID: line.ProductID,
				Direction: enums.MovementOut,
				Quantity:  line.Quantity,
				Reason:    enums.MovementReasonSale,
				ActorID:   plan.actor.UserID,
				SaleID:    &saleID,
			}); err != nil {
				productID := line.ProductID
				return &stepError{step: enums.CommitStepStockMovements, productID: &productID, err: err}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := step(enums.CommitStepActivityLog, func() error {
		actor := plan.actor.UserID
		saleID := plan.sale.ID
		return o.audit.Record(ctx, tx, audit.Entry{
			ActorID:  &actor,
			Action:   enums.ActivitySale,
			Entity:   audit.EntitySale,
			EntityID: &saleID,
			Detail: fmt.Sprintf("sale %s: %d lines, total %s, payment %s, cashier %s",
				saleID, len(plan.lines), plan.sale.Total, plan.sale.PaymentMethod, plan.actor.Name),
		})
	}); err != nil {
		return err
	}

	return step(enums.CommitStepReceiptEvent, func() error {
		return o.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   plan.sale.ID,
			Actor:         outbox.ActorFromIdentity(plan.actor),
			Data:          plan.receipt.event(),
			OccurredAt:    plan.receipt.IssuedAt,
		})
	})
}

func (o *Orchestrator) fail(ctx context.Context, plan commitPlan, completed []enums.CommitStep, token string, err error) error {
	failure := StepFailure{
		Step:           enums.CommitStepTransactionCommit,
		CompletedSteps: append([]enums.CommitStep{}, completed...),
		SaleID:         plan.sale.ID,
		RolledBack:     o.mode == enums.CommitModeTransactional,
		Cause:          err.Error(),
	}
	var se *stepError
	if errors.As(err, &se) {
		failure.Step = se.step
		failure.ProductID = se.productID
		failure.Cause = se.err.Error()
	}
	nothingWritten := failure.RolledBack || len(completed) == 0

	if failure.Step == enums.CommitStepSaleHeader && token != "" && db.IsUniqueViolation(err, "") {
		return o.duplicate(ctx, token)
	}
	if nothingWritten && token != "" && o.guard != nil {
		if rerr := o.guard.Release(ctx, token); rerr != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", rerr.Error()), "checkout.idempotency.release_failed")
		}
	}

	o.metrics.IncCommit(metrics.OutcomeFailed)
	o.metrics.IncStepFailure(string(failure.Step))
	fields := map[string]any{
		"completed_steps": failure.CompletedSteps,
		"rolled_back":     failure.RolledBack,
	}
	if failure.ProductID != nil {
		fields["product_id"] = failure.ProductID.String()
	}
	o.logg.Error(o.logg.WithStep(o.logg.WithFields(ctx, fields), string(failure.Step)), "checkout.step.failed", err)

	return pkgerrors.Wrap(pkgerrors.CodeCommitStepFailed, err,
		fmt.Sprintf("checkout failed at %s", failure.Step)).WithDetails(failure)
}

func (o *Orchestrator) duplicate(ctx context.Context, token string) error {
	o.metrics.IncCommit(metrics.OutcomeDuplicate)
	details := map[string]any{"idempotency_key": token}
	if saleID := o.originalSale(ctx, token); saleID != "" {
		details["sale_id"] = saleID
	}
	o.logg.Warn(o.logg.WithFields(ctx, details), "checkout.duplicate")
	return pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already submitted with this idempotency key").
		WithDetails(details)
}

// originalSale asks the guard first and falls back to the idempotency_key
// column. It returns "" while the first attempt is still in flight.
func (o *Orchestrator) originalSale(ctx context.Context, token string) string {
	if o.guard != nil {
		if saleID, err := o.guard.Lookup(ctx, token); err == nil && saleID != "" {
			return saleID
		}
	}
	if o.lookup == nil {
		return ""
	}
	sale, err := o.lookup.FindByIdempotencyKey(ctx, token)
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.duplicate.lookup_failed")
		return ""
	}
	if sale == nil {
		return ""
	}
	return sale.ID.String()
}
