// internal/domain/cart/repository.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/nutrition-store/internal/domain/product"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists cart lines. Every method is scoped to one owner.
type Repository interface {
	ListLines(ctx context.Context, ownerID uint) ([]CartLine, error)
	FindLine(ctx context.Context, ownerID, productID uint, size string) (*CartLine, error)
	GetLine(ctx context.Context, ownerID, lineID uint) (*CartLine, error)
	// UpsertLine inserts the line or adds quantity to the existing one in a single statement
	UpsertLine(ctx context.Context, ownerID, productID uint, size string, quantity int) (*CartLine, error)
	UpdateQuantity(ctx context.Context, ownerID, lineID uint, quantity int) (*CartLine, error)
	DeleteLine(ctx context.Context, ownerID, lineID uint) error
	DeleteAll(ctx context.Context, ownerID uint) (int64, error)
}

// ProductReader looks up the current state of catalog products
type ProductReader interface {
	FindProduct(ctx context.Context, id uint) (*ProductSnapshot, error)
	FindProducts(ctx context.Context, ids []uint) (map[uint]*ProductSnapshot, error)
}

// GormRepository is the relational Repository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new cart repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// ListLines returns the owner's lines, newest first
func (r *GormRepository) ListLines(ctx context.Context, ownerID uint) ([]CartLine, error) {
	var lines []CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	return lines, nil
}

// FindLine returns the line for (owner, product, size)
func (r *GormRepository) FindLine(ctx context.Context, ownerID, productID uint, size string) (*CartLine, error) {
	return r.first(ctx, "user_id = ? AND product_id = ? AND size = ?", ownerID, productID, size)
}

// GetLine returns the line only if ownerID owns it
func (r *GormRepository) GetLine(ctx context.Context, ownerID, lineID uint) (*CartLine, error) {
	return r.first(ctx, "id = ? AND user_id = ?", lineID, ownerID)
}

// UpsertLine relies on the unique (user_id, product_id, size) index so that
// concurrent adds of the same key merge instead of racing a read-then-write.
func (r *GormRepository) UpsertLine(ctx context.Context, ownerID, productID uint, size string, quantity int) (*CartLine, error) {
	line := CartLine{
		UserID:    ownerID,
		ProductID: productID,
		Size:      size,
		Quantity:  quantity,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "size"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_lines.quantity + excluded.quantity"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&line).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart line: %w", err)
	}

	// The insert result carries the requested quantity, not the merged one
	return r.FindLine(ctx, ownerID, productID, size)
}

// UpdateQuantity sets an owned line's quantity
func (r *GormRepository) UpdateQuantity(ctx context.Context, ownerID, lineID uint, quantity int) (*CartLine, error) {
	result := r.db.WithContext(ctx).Model(&CartLine{}).
		Where("id = ? AND user_id = ?", lineID, ownerID).
		Update("quantity", quantity)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update cart line: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrLineNotFound
	}
	return r.GetLine(ctx, ownerID, lineID)
}

// DeleteLine removes an owned line
func (r *GormRepository) DeleteLine(ctx context.Context, ownerID, lineID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, ownerID).
		Delete(&CartLine{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete cart line: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLineNotFound
	}
	return nil
}

// DeleteAll removes every line of the owner in one transaction and reports how many went
func (r *GormRepository) DeleteAll(ctx context.Context, ownerID uint) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ?", ownerID).Delete(&CartLine{})
		if result.Error != nil {
			return fmt.Errorf("failed to clear cart: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *GormRepository) first(ctx context.Context, where string, args ...interface{}) (*CartLine, error) {
	var line CartLine
	if err := r.db.WithContext(ctx).Where(where, args...).First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to retrieve cart line: %w", err)
	}
	return &line, nil
}

// CatalogReader reads product snapshots from the catalog tables.
// Soft-deleted products are invisible to it.
type CatalogReader struct {
	db *gorm.DB
}

// NewCatalogReader creates a ProductReader backed by the catalog tables
func NewCatalogReader(db *gorm.DB) *CatalogReader {
	return &CatalogReader{db: db}
}

// FindProduct returns the current snapshot of one product
func (r *CatalogReader) FindProduct(ctx context.Context, id uint) (*ProductSnapshot, error) {
	var p product.Product
	err := r.preloaded(ctx).Where("products.id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return snapshotOf(&p), nil
}

// FindProducts returns snapshots keyed by ID. Missing IDs are simply absent.
func (r *CatalogReader) FindProducts(ctx context.Context, ids []uint) (map[uint]*ProductSnapshot, error) {
	snapshots := make(map[uint]*ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return snapshots, nil
	}

	var products []product.Product
	if err := r.preloaded(ctx).Where("products.id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	for i := range products {
		snapshots[products[i].ID] = snapshotOf(&products[i])
	}
	return snapshots, nil
}

func (r *CatalogReader) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		})
}

func snapshotOf(p *product.Product) *ProductSnapshot {
	snap := &ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Discount:      p.GetDiscountPercentage(),
		Images:        p.ImageURLs(),
		InStock:       p.InStock,
		CategoryID:    p.CategoryID,
		Sizes:         append([]string{}, p.Sizes...),
	}
	if p.Category != nil {
		snap.Category = &CategoryRef{
			ID:   p.Category.ID,
			Name: p.Category.Name,
			Slug: p.Category.Slug,
		}
	}
	return snap
}
