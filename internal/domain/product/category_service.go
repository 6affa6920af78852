// internal/domain/product/category_service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CategoryService handles category business logic
type CategoryService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewCategoryService creates a new category service
func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{
		db:       db,
		validate: newValidator(),
	}
}

// CategoryForm is the admin category form schema
type CategoryForm struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Slug        string `json:"slug" validate:"omitempty,max=255,slug"`
	Description string `json:"description" validate:"max=500"`
	Image       string `json:"image" validate:"omitempty,url,max=500"`
	SortOrder   int    `json:"sortOrder" validate:"gte=0"`
	IsActive    *bool  `json:"isActive"`
}

// CategoryWithProductCount represents category with product count
type CategoryWithProductCount struct {
	Category
	ProductCount int64 `json:"productCount"`
}

// List retrieves categories ordered for display, with their product counts
func (s *CategoryService) List(ctx context.Context, includeInactive bool) ([]CategoryWithProductCount, error) {
	var categories []CategoryWithProductCount

	query := s.db.WithContext(ctx).Model(&Category{}).
		Select("categories.*, COUNT(products.id) AS product_count").
		Joins("LEFT JOIN products ON products.category_id = categories.id AND products.deleted_at IS NULL").
		Group("categories.id").
		Order("categories.sort_order ASC, categories.name ASC")

	if !includeInactive {
		query = query.Where("categories.is_active = ?", true)
	}

	if err := query.Scan(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	return categories, nil
}

// GetBySlug retrieves an active category by slug
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	var category Category
	err := s.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}
	return &category, nil
}

// Create validates the form and creates a category
func (s *CategoryService) Create(ctx context.Context, form *CategoryForm) (*Category, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := validateStruct(s.validate, form); err != nil {
		return nil, err
	}

	var category Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := resolveSlug(tx, &Category{}, form.Slug, form.Name, 0)
		if err != nil {
			return err
		}

		category = Category{Slug: slug}
		applyCategoryForm(&category, form)

		if err := tx.Create(&category).Error; err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &category, nil
}

// Update validates the form and replaces the category's editable fields
func (s *CategoryService) Update(ctx context.Context, id uint, form *CategoryForm) (*Category, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := validateStruct(s.validate, form); err != nil {
		return nil, err
	}

	var category Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return fmt.Errorf("failed to find category: %w", err)
		}

		if form.Slug != "" && form.Slug != category.Slug {
			slug, err := resolveSlug(tx, &Category{}, form.Slug, form.Name, id)
			if err != nil {
				return err
			}
			category.Slug = slug
		}

		applyCategoryForm(&category, form)
		if err := tx.Omit("CreatedAt").Save(&category).Error; err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &category, nil
}

// Delete soft deletes a category that no longer holds products
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count category products: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d products", ErrCategoryInUse, count)
		}

		result := tx.Where("id = ?", id).Delete(&Category{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete category: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

func applyCategoryForm(c *Category, form *CategoryForm) {
	c.Name = form.Name
	c.Description = form.Description
	c.Image = form.Image
	c.SortOrder = form.SortOrder
	c.IsActive = form.IsActive == nil || *form.IsActive
}
