package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository wraps the movement log and the stock_levels side table.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ProductExists reports whether a product row exists, active or not.
func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) InsertMovement(ctx context.Context, movement *models.InventoryMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindStock returns nil when the product has no stock row yet.
func (r *Repository) FindStock(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).First(&level, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &level, nil
}

// CreateStock inserts a stock row, leaving an existing row untouched.
func (r *Repository) CreateStock(ctx context.Context, level *models.StockLevel) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "product_id"}}, DoNothing: true}).
		Create(level)
	return res.RowsAffected > 0, res.Error
}

// Increment adds qty to the stock row, creating it when missing.
func (r *Repository) Increment(ctx context.Context, productID uuid.UUID, qty int, location string) error {
	now := time.Now().UTC()
	level := &models.StockLevel{
		ProductID: productID,
		Quantity:  qty,
		Location:  location,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("stock_levels.quantity + ?", qty),
				"updated_at": now,
			}),
		}).
		Create(level).Error
}

// DecrementIfAvailable subtracts qty only when at least qty units are on hand.
// It reports whether the row was updated.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSet writes next only while the row still holds expected.
func (r *Repository) CompareAndSet(ctx context.Context, productID uuid.UUID, expected, next int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Where("product_id = ? AND quantity = ?", productID, expected).
		Updates(map[string]any{
			"quantity":   next,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListMovements returns movements for a product, newest first, starting after
// cursor. It fetches one row beyond limit for pagination.Trim.
func (r *Repository) ListMovements(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if err := pagination.Newest(query, cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

const signedSum = "COALESCE(SUM(CASE WHEN direction = ? THEN quantity ELSE -quantity END), 0)"

// SignedBalance returns the sum of inbound minus outbound movements for a product.
func (r *Repository) SignedBalance(ctx context.Context, productID uuid.UUID) (int, error) {
	var balance int64
	if err := r.db.WithContext(ctx).
		Model(&models.InventoryMovement{}).
		Select(signedSum, enums.MovementIn).
		Where("product_id = ?", productID).
		Scan(&balance).Error; err != nil {
		return 0, err
	}
	return int(balance), nil
}

// ProductBalance pairs the ledger balance with the stock row for one product.
type ProductBalance struct {
	ProductID uuid.UUID
	Balance   int
}

// SignedBalances returns the ledger balance of every product with movements.
func (r *Repository) SignedBalances(ctx context.Context) ([]ProductBalance, error) {
	var rows []ProductBalance
	if err := r.db.WithContext(ctx).
		Model(&models.InventoryMovement{}).
		Select("product_id, "+signedSum+" AS balance", enums.MovementIn).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStock returns every stock row.
func (r *Repository) ListStock(ctx context.Context) ([]models.StockLevel, error) {
	var rows []models.StockLevel
	if err := r.db.WithContext(ctx).Order("product_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSaleMovements returns the sale-reason movements that reference the given sales.
func (r *Repository) ListSaleMovements(ctx context.Context, saleIDs []uuid.UUID) ([]models.InventoryMovement, error) {
	if len(saleIDs) == 0 {
		return nil, nil
	}
	var rows []models.InventoryMovement
	if err := r.db.WithContext(ctx).
		Where("sale_id IN ? AND reason = ?", saleIDs, enums.MovementReasonSale).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
