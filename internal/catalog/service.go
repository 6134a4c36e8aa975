package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type stockPoster interface {
	Post(ctx context.Context, tx *gorm.DB, in inventory.MovementInput) (*inventory.Posting, error)
}

type activityRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

// Service resolves scanned codes and manages the product catalog.
type Service struct {
	repo     *Repository
	dbClient *db.Client
	ledger   stockPoster
	audit    activityRecorder
	logg     *logger.Logger
	location string
	loads    singleflight.Group
}

// NewService constructs the catalog service.
func NewService(repo *Repository, dbClient *db.Client, ledger stockPoster, recorder activityRecorder, logg *logger.Logger, location string) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     repo,
		dbClient: dbClient,
		ledger:   ledger,
		audit:    recorder,
		logg:     logg,
		location: location,
	}, nil
}

// ResolveCode finds the single active product whose code equals code.
func (s *Service) ResolveCode(ctx context.Context, code string) (ProductView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ProductView{}, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	rows, err := s.repo.FindActiveByCode(ctx, code, 2)
	if err != nil {
		return ProductView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve code")
	}
	switch len(rows) {
	case 0:
		return ProductView{}, pkgerrors.New(pkgerrors.CodeNotFound, "no active product matches the code").
			WithDetails(map[string]any{"code": code})
	case 1:
		return viewFromModel(rows[0]), nil
	default:
		logCtx := s.logg.WithField(ctx, "code", code)
		s.logg.Error(logCtx, "catalog.code.duplicated", nil)
		return ProductView{}, pkgerrors.New(pkgerrors.CodeInternal, "duplicate active products share a code")
	}
}

// Search lists active products whose name, code or description contain term.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]ProductView, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	rows, err := s.repo.SearchActive(ctx, term, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search products")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no products match the search").
			WithDetails(map[string]any{"term": term})
	}
	return viewsFromModels(rows), nil
}

// ScanForCart resolves a scanned code and refuses products with nothing on hand.
func (s *Service) ScanForCart(ctx context.Context, code string) (ProductView, error) {
	view, err := s.ResolveCode(ctx, code)
	if err != nil {
		return ProductView{}, err
	}
	if view.Quantity <= 0 {
		return ProductView{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock").
			WithDetails(map[string]any{"product_id": view.ID.String(), "available": view.Quantity})
	}
	return view, nil
}

// Snapshot loads a fresh view of the given products keyed by id. Concurrent
// calls for the same id set share one read. A caller that gives up does not
// cancel the read for the others.
func (s *Service) Snapshot(ctx context.Context, productIDs ...uuid.UUID) (map[uuid.UUID]ProductView, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]ProductView{}, nil
	}
	ch := s.loads.DoChan(snapshotKey(productIDs), func() (interface{}, error) {
		return s.loadSnapshot(ctx, productIDs)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ctx.Err(), "load catalog snapshot")
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Err, "load catalog snapshot")
	}
	shared := res.Val.(map[uuid.UUID]ProductView)
	out := make(map[uuid.UUID]ProductView, len(shared))
	for id, view := range shared {
		out[id] = view
	}
	return out, nil
}

func snapshotKey(productIDs []uuid.UUID) string {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, id.String())
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// loadSnapshot detaches from the caller's cancellation since other callers
// may be waiting on the same read.
func (s *Service) loadSnapshot(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductView, error) {
	rows, err := s.repo.FindByIDs(context.WithoutCancel(ctx), productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]ProductView, len(rows))
	for _, row := range rows {
		out[row.ID] = viewFromModel(row)
	}
	return out, nil
}

// LowStock lists active products below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]ProductView, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return viewsFromModels(rows), nil
}

// CreateProduct adds a product with its stock row and optional opening stock.
func (s *Service) CreateProduct(ctx context.Context, identity types.Identity, input CreateProductInput) (*ProductView, error) {
	if err := requireElevated(identity); err != nil {
		return nil, err
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = s.location
	}

	now := time.Now().UTC()
	product := &models.Product{
		ID:               uuid.New(),
		Code:             input.Code,
		Name:             input.Name,
		Description:      trimOptional(input.Description),
		Price:            input.Price,
		Cost:             input.Cost,
		ReorderThreshold: input.ReorderThreshold,
		CategoryID:       input.CategoryID,
		SupplierID:       input.SupplierID,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.ActiveCodeTaken(ctx, product.Code, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return codeConflict(product.Code)
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return codeConflict(product.Code)
			}
			return err
		}
		if err := repo.CreateStockLevel(ctx, &models.StockLevel{
			ProductID: product.ID,
			Location:  location,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		if input.InitialStock > 0 {
			if _, err := s.ledger.Post(ctx, tx, inventory.MovementInput{
				ProductID: product.ID,
				Direction: enums.MovementIn,
				Quantity:  input.InitialStock,
				Reason:    enums.MovementReasonInitial,
				ActorID:   identity.UserID,
			}); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, identity, enums.ActivityCreate, product.ID,
			fmt.Sprintf("created %s (%s) price %s stock %d", product.Name, product.Code, product.Price, input.InitialStock))
	})
	if err != nil {
		return nil, asServiceError(err, "create product")
	}

	return s.load(ctx, product.ID)
}

// UpdateProduct applies the patch to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, identity types.Identity, productID uuid.UUID, input UpdateProductInput) (*ProductView, error) {
	if err := requireElevated(identity); err != nil {
		return nil, err
	}
	updates, changes, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if existing == nil {
			return productNotFound(productID)
		}
		if len(updates) > 0 {
			if err := repo.UpdateProduct(ctx, productID, updates); err != nil {
				return err
			}
		}
		if input.Location != nil {
			location := strings.TrimSpace(*input.Location)
			if err := repo.UpdateLocation(ctx, productID, location); err != nil {
				return err
			}
			changes = append(changes, "location="+location)
		}
		if len(changes) == 0 {
			return nil
		}
		return s.record(ctx, tx, identity, enums.ActivityUpdate, productID,
			fmt.Sprintf("updated %s: %s", existing.Code, strings.Join(changes, ", ")))
	})
	if err != nil {
		return nil, asServiceError(err, "update product")
	}
	return s.load(ctx, productID)
}

// Deactivate hides a product from resolution and search. Sold products are
// never deleted.
func (s *Service) Deactivate(ctx context.Context, identity types.Identity, productID uuid.UUID) error {
	if err := requireElevated(identity); err != nil {
		return err
	}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if existing == nil {
			return productNotFound(productID)
		}
		if !existing.IsActive {
			return nil
		}
		if err := repo.UpdateProduct(ctx, productID, map[string]any{"is_active": false}); err != nil {
			return err
		}
		return s.record(ctx, tx, identity, enums.ActivityDeactivate, productID,
			fmt.Sprintf("deactivated %s (%s)", existing.Name, existing.Code))
	})
	if err != nil {
		return asServiceError(err, "deactivate product")
	}
	return nil
}

func (s *Service) load(ctx context.Context, productID uuid.UUID) (*ProductView, error) {
	row, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if row == nil {
		return nil, productNotFound(productID)
	}
	view := viewFromModel(*row)
	return &view, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, identity types.Identity, action enums.ActivityAction, productID uuid.UUID, detail string) error {
	actor := identity.UserID
	return s.audit.Record(ctx, tx, audit.Entry{
		ActorID:  &actor,
		Action:   action,
		Entity:   audit.EntityProduct,
		EntityID: &productID,
		Detail:   detail,
	})
}

func requireElevated(identity types.Identity) error {
	if identity.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "acting user required")
	}
	if !identity.IsElevated() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "catalog changes require an elevated role")
	}
	return nil
}

func validateCreate(input CreateProductInput) error {
	switch {
	case input.Code == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	case input.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.Price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	case input.Cost.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "cost cannot be negative")
	case input.ReorderThreshold < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder threshold cannot be negative")
	case input.InitialStock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}
	return nil
}

func buildUpdates(input UpdateProductInput) (map[string]any, []string, error) {
	updates := map[string]any{}
	var changes []string
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		updates["name"] = name
		changes = append(changes, "name="+name)
	}
	if input.Description != nil {
		updates["description"] = trimOptional(input.Description)
		changes = append(changes, "description")
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
		changes = append(changes, "price="+input.Price.String())
	}
	if input.Cost != nil {
		if input.Cost.IsNegative() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot be negative")
		}
		updates["cost"] = *input.Cost
		changes = append(changes, "cost="+input.Cost.String())
	}
	if input.ReorderThreshold != nil {
		if *input.ReorderThreshold < 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder threshold cannot be negative")
		}
		updates["reorder_threshold"] = *input.ReorderThreshold
		changes = append(changes, fmt.Sprintf("reorder_threshold=%d", *input.ReorderThreshold))
	}
	return updates, changes, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func codeConflict(code string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an active product already uses this code").
		WithDetails(map[string]any{"code": code})
}

func productNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": id.String()})
}

func asServiceError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
