// internal/domain/cart/entity.go
package cart

import (
	"time"
)

// CartLine is one persisted (owner, product, size) selection
type CartLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_lines_owner_product_size,priority:1" json:"userId"`
	ProductID uint      `gorm:"not null;index;uniqueIndex:idx_cart_lines_owner_product_size,priority:2" json:"productId"`
	Size      string    `gorm:"not null;size:50;uniqueIndex:idx_cart_lines_owner_product_size,priority:3" json:"size"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name
func (CartLine) TableName() string {
	return "cart_lines"
}

// Caller identifies who is making a cart request
type Caller struct {
	UserID        uint
	Authenticated bool
	IsAdmin       bool
}

// Anonymous returns a caller without a session
func Anonymous() Caller {
	return Caller{}
}

// Customer returns an authenticated caller for userID
func Customer(userID uint) Caller {
	return Caller{UserID: userID, Authenticated: true}
}

// ProductSnapshot is the current state of a product as the cart sees it
type ProductSnapshot struct {
	ID            uint         `json:"id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Price         int64        `json:"price"`
	OriginalPrice *int64       `json:"originalPrice,omitempty"`
	Discount      int          `json:"discountPercentage"`
	Images        []string     `json:"images"`
	InStock       bool         `json:"inStock"`
	CategoryID    uint         `json:"categoryId"`
	Category      *CategoryRef `json:"category,omitempty"`
	Sizes         []string     `json:"sizes"`
}

// CategoryRef is the category summary carried on a product snapshot
type CategoryRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Item is a cart line decorated with its product and computed subtotal
type Item struct {
	ID        uint             `json:"id"`
	ProductID uint             `json:"productId"`
	Size      string           `json:"size"`
	Quantity  int              `json:"quantity"`
	Subtotal  int64            `json:"subtotal"`
	Product   *ProductSnapshot `json:"product"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Summary is the derived cart-level pricing
type Summary struct {
	ItemCount         int     `json:"itemCount"`
	Subtotal          int64   `json:"subtotal"`
	ShippingCost      int64   `json:"shippingCost"`
	ShippingThreshold int64   `json:"shippingThreshold"`
	Tax               int64   `json:"tax"`
	TaxRate           float64 `json:"taxRate"`
	Total             int64   `json:"total"`
}

// Cart is the owner's full cart as returned to the storefront
type Cart struct {
	Items   []Item  `json:"items"`
	Summary Summary `json:"summary"`
}

// AddRequest is the body of an add-to-cart call
type AddRequest struct {
	ProductID uint   `json:"productId"`
	Quantity  *int   `json:"quantity"`
	Size      string `json:"size"`
}

// UpdateRequest is the body of a set-quantity call
type UpdateRequest struct {
	CartItemID uint `json:"cartItemId"`
	Quantity   *int `json:"quantity"`
}

// Problem describes a line that cannot be checked out as is
type Problem struct {
	ItemID    uint   `json:"itemId"`
	ProductID uint   `json:"productId"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason"`
}

// Validation is the pre-checkout report for a cart
type Validation struct {
	Valid    bool      `json:"valid"`
	Problems []Problem `json:"problems"`
	Summary  Summary   `json:"summary"`
}

const (
	ProblemOutOfStock  = "out_of_stock"
	ProblemUnavailable = "unavailable"
)

func newItem(line CartLine, p *ProductSnapshot) Item {
	item := Item{
		ID:        line.ID,
		ProductID: line.ProductID,
		Size:      line.Size,
		Quantity:  line.Quantity,
		Product:   p,
		CreatedAt: line.CreatedAt,
		UpdatedAt: line.UpdatedAt,
	}
	if p != nil {
		item.Subtotal = p.Price * int64(line.Quantity)
	}
	return item
}
