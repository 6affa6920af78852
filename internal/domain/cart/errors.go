// internal/domain/cart/errors.go
package cart

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidInput    = errors.New("invalid input")
	ErrProductNotFound = errors.New("product not found")
	ErrLineNotFound    = errors.New("cart item not found")
	ErrOutOfStock      = errors.New("product is out of stock")
)
