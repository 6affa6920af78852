// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a catalog product. Prices are whole rupees.
type Product struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null;size:255" json:"name"`
	Slug          string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         int64          `gorm:"not null" json:"price"`
	OriginalPrice *int64         `json:"originalPrice,omitempty"` // Pre-discount price
	Discount      int            `gorm:"-" json:"discountPercentage"`
	InStock       bool           `gorm:"not null" json:"inStock"`
	IsFeatured    bool           `gorm:"not null" json:"isFeatured"`
	Sizes         []string       `gorm:"type:text;serializer:json" json:"sizes"` // Declaration order matters
	Tags          string         `gorm:"size:500" json:"tags"`                   // Comma-separated
	CategoryID    uint           `gorm:"not null;index" json:"categoryId"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Category *Category      `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category,omitempty"`
	Images   []ProductImage `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"images"`
}

// Category groups products on the storefront
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"size:500" json:"description"`
	Image       string         `gorm:"size:500" json:"image"`
	SortOrder   int            `gorm:"not null" json:"sortOrder"`
	IsActive    bool           `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductImage is one image of a product, ordered by SortOrder
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"productId"`
	URL       string    `gorm:"not null;size:500" json:"url"`
	AltText   string    `gorm:"size:255" json:"altText"`
	SortOrder int       `gorm:"not null" json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductReview is a customer's rating of a product. A user reviews a product at
// most once, and a review is hidden from the storefront until an admin approves it.
type ProductReview struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProductID  uint      `gorm:"not null;uniqueIndex:idx_product_reviews_product_user" json:"productId"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_product_reviews_product_user;index" json:"userId"`
	Rating     int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Title      string    `gorm:"size:255" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsApproved bool      `gorm:"not null" json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Filled from users.first_name by review queries
	AuthorName string `gorm:"->;-:migration" json:"authorName"`
}

// TableName overrides
func (Product) TableName() string       { return "products" }
func (Category) TableName() string      { return "categories" }
func (ProductImage) TableName() string  { return "product_images" }
func (ProductReview) TableName() string { return "product_reviews" }

// ImageURLs returns the product's image URLs in display order
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// AfterFind fills the derived discount on every loaded product
func (p *Product) AfterFind(tx *gorm.DB) error {
	p.Discount = p.GetDiscountPercentage()
	return nil
}

// GetDiscountPercentage returns the whole-percent discount against OriginalPrice
func (p *Product) GetDiscountPercentage() int {
	if p.OriginalPrice != nil && *p.OriginalPrice > 0 && p.Price < *p.OriginalPrice {
		return int(((*p.OriginalPrice - p.Price) * 100) / *p.OriginalPrice)
	}
	return 0
}
