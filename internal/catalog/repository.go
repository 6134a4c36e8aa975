package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and writes catalog rows.
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

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Preload("Stock").
		Where("is_active = ?", true)
}

// FindActiveByCode returns at most limit active products with the exact code.
func (r *Repository) FindActiveByCode(ctx context.Context, code string, limit int) ([]models.Product, error) {
	var rows []models.Product
	if err := r.active(ctx).
		Where("code = ?", code).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchActive matches term against name, code and description, ignoring case.
func (r *Repository) SearchActive(ctx context.Context, term string, limit int) ([]models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	var rows []models.Product
	if err := r.active(ctx).
		Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(code) LIKE ? ESCAPE '!' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern).
		Order("name ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByIDs loads products and their stock regardless of the active flag.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Preload("Stock").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns nil when no product has the id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Stock").First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListLowStock returns active products whose stock is strictly below their
// reorder threshold. Products without a stock row count as zero.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	if err := r.active(ctx).
		Where("COALESCE((SELECT s.quantity FROM stock_levels s WHERE s.product_id = products.id), 0) < products.reorder_threshold").
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveCodeTaken reports whether another active product already uses code.
func (r *Repository) ActiveCodeTaken(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("code = ? AND is_active = ?", code, true)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Stock").Create(product).Error
}

func (r *Repository) CreateStockLevel(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

// UpdateProduct writes the given columns.
func (r *Repository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateLocation sets the storage location tag of a stock row.
func (r *Repository) UpdateLocation(ctx context.Context, productID uuid.UUID, location string) error {
	return r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Where("product_id = ?", productID).
		Update("location", location).Error
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(value)
}
