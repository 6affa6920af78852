// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles product business logic
type Service struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewService creates a new product service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:       db,
		validate: newValidator(),
	}
}

// ListRequest represents product list query parameters
type ListRequest struct {
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
	CategoryID   uint   `form:"categoryId"`
	CategorySlug string `form:"category"`
	Search       string `form:"search"`
	MinPrice     int64  `form:"minPrice"`
	MaxPrice     int64  `form:"maxPrice"`
	InStock      *bool  `form:"inStock"`
	Featured     *bool  `form:"featured"`
	SortBy       string `form:"sortBy"`
	SortOrder    string `form:"sortOrder"`
}

// ProductForm is the admin product form schema, used for both create and update
type ProductForm struct {
	Name          string   `json:"name" validate:"required,min=2,max=255"`
	Slug          string   `json:"slug" validate:"omitempty,max=255,slug"`
	Description   string   `json:"description" validate:"max=10000"`
	Price         int64    `json:"price" validate:"gt=0"`
	OriginalPrice *int64   `json:"originalPrice" validate:"omitempty,gt=0"`
	InStock       *bool    `json:"inStock"`
	IsFeatured    bool     `json:"isFeatured"`
	Sizes         []string `json:"sizes" validate:"max=20,unique,dive,required,max=50"`
	Images        []string `json:"images" validate:"max=10,dive,required,url,max=500"`
	Tags          string   `json:"tags" validate:"max=500"`
	CategoryID    uint     `json:"categoryId" validate:"required"`
}

// ListResponse represents a page of products
type ListResponse struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Validate checks the form schema and the cross-field rules the tags cannot express
func (s *Service) Validate(form *ProductForm) error {
	for i := range form.Sizes {
		form.Sizes[i] = strings.TrimSpace(form.Sizes[i])
	}
	form.Name = strings.TrimSpace(form.Name)

	if err := validateStruct(s.validate, form); err != nil {
		return err
	}

	if form.OriginalPrice != nil && *form.OriginalPrice < form.Price {
		return fmt.Errorf("%w: originalPrice must not be lower than price", ErrValidation)
	}

	return nil
}

// List retrieves products with filtering and pagination
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	normalizePaging(req)

	query := s.db.WithContext(ctx).Model(&Product{})

	if req.CategoryID > 0 {
		query = query.Where("products.category_id = ?", req.CategoryID)
	}
	if req.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", req.CategorySlug)
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.tags) LIKE ?", like, like, like)
	}
	if req.MinPrice > 0 {
		query = query.Where("products.price >= ?", req.MinPrice)
	}
	if req.MaxPrice > 0 {
		query = query.Where("products.price <= ?", req.MaxPrice)
	}
	if req.InStock != nil {
		query = query.Where("products.in_stock = ?", *req.InStock)
	}
	if req.Featured != nil {
		query = query.Where("products.is_featured = ?", *req.Featured)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	err := query.
		Preload("Category").
		Preload("Images", orderImages).
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &ListResponse{
		Products: products,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// GetByID retrieves a single product by ID
func (s *Service) GetByID(ctx context.Context, id uint) (*Product, error) {
	return s.findOne(ctx, "products.id = ?", id)
}

// GetBySlug retrieves a single product by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return s.findOne(ctx, "products.slug = ?", slug)
}

// Create validates the form and creates a new product
func (s *Service) Create(ctx context.Context, form *ProductForm) (*Product, error) {
	if err := s.Validate(form); err != nil {
		return nil, err
	}

	var created Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCategory(tx, form.CategoryID); err != nil {
			return err
		}

		slug, err := resolveSlug(tx, &Product{}, form.Slug, form.Name, 0)
		if err != nil {
			return err
		}

		created = Product{Slug: slug}
		applyForm(&created, form)

		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, created.ID)
}

// Update validates the form and replaces the product's editable fields
func (s *Service) Update(ctx context.Context, id uint, form *ProductForm) (*Product, error) {
	if err := s.Validate(form); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Product
		if err := tx.Where("id = ?", id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to find product: %w", err)
		}

		if err := ensureCategory(tx, form.CategoryID); err != nil {
			return err
		}

		slug := existing.Slug
		if form.Slug != "" && form.Slug != existing.Slug {
			resolved, err := resolveSlug(tx, &Product{}, form.Slug, form.Name, id)
			if err != nil {
				return err
			}
			slug = resolved
		}

		if err := tx.Where("product_id = ?", id).Delete(&ProductImage{}).Error; err != nil {
			return fmt.Errorf("failed to replace product images: %w", err)
		}

		existing.Slug = slug
		applyForm(&existing, form)
		images := existing.Images

		// Save writes every column, so zero values such as InStock=false persist
		if err := tx.Omit(clause.Associations, "CreatedAt").Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return fmt.Errorf("failed to save product images: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// Delete soft deletes a product
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetStock flips the in-stock flag of a product
func (s *Service) SetStock(ctx context.Context, id uint, inStock bool) error {
	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", id).
		Update("in_stock", inStock)
	if result.Error != nil {
		return fmt.Errorf("failed to update stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *Service) findOne(ctx context.Context, where string, arg interface{}) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", orderImages).
		Where(where, arg).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &product, nil
}

func applyForm(p *Product, form *ProductForm) {
	p.Name = form.Name
	p.Description = form.Description
	p.Price = form.Price
	p.OriginalPrice = form.OriginalPrice
	p.InStock = form.InStock == nil || *form.InStock
	p.IsFeatured = form.IsFeatured
	p.Sizes = append([]string{}, form.Sizes...)
	p.Tags = form.Tags
	p.CategoryID = form.CategoryID

	p.Images = make([]ProductImage, 0, len(form.Images))
	for i, url := range form.Images {
		p.Images = append(p.Images, ProductImage{
			ProductID: p.ID,
			URL:       url,
			AltText:   form.Name,
			SortOrder: i,
		})
	}
}

func ensureCategory(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// resolveSlug returns requested if it is free, or a unique slug derived from name.
// excludeID skips the row being updated.
func resolveSlug(tx *gorm.DB, model interface{}, requested, name string, excludeID uint) (string, error) {
	slug := requested
	if slug == "" {
		slug = generateSlug(name)
	}

	var count int64
	query := tx.Model(model).Unscoped().Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to check slug: %w", err)
	}

	switch {
	case count == 0:
		return slug, nil
	case requested != "":
		return "", fmt.Errorf("%w: %s", ErrSlugTaken, requested)
	default:
		return withSuffix(slug), nil
	}
}

func orderImages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

func normalizePaging(req *ListRequest) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
}

// buildOrderClause builds ORDER BY clause for sorting
func buildOrderClause(sortBy, sortOrder string) string {
	columns := map[string]string{
		"name":      "products.name",
		"price":     "products.price",
		"createdAt": "products.created_at",
	}

	column, ok := columns[sortBy]
	if !ok {
		column = "products.created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, products.id %s", column, sortOrder, sortOrder)
}
