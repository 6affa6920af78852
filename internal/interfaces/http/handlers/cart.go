// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/domain/cart"
	"github.com/your-org/nutrition-store/internal/interfaces/http/middleware"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
	log         logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		log:         log,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	result, err := h.cartService.GetCart(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.handleError(c, err, "Failed to retrieve cart")
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddItem handles POST /cart
func (h *CartHandler) AddItem(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	var req cart.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.cartService.Add(c.Request.Context(), caller, req)
	if err != nil {
		h.handleError(c, err, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart",
		"item":    item,
	})
}

// UpdateItem handles PUT /cart
func (h *CartHandler) UpdateItem(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	var req cart.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.cartService.Update(c.Request.Context(), caller, req)
	if err != nil {
		h.handleError(c, err, "Failed to update cart item")
		return
	}

	if item == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated",
		"item":    item,
	})
}

// RemoveItem handles DELETE /cart?itemId=ID
func (h *CartHandler) RemoveItem(c *gin.Context) {
	caller, ok := h.requireCaller(c)
	if !ok {
		return
	}

	raw := c.Query("itemId")
	if raw == "" {
		respondError(c, http.StatusBadRequest, "itemId is required")
		return
	}
	itemID, ok := parseID(raw)
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid itemId")
		return
	}

	if err := h.cartService.Remove(c.Request.Context(), caller, itemID); err != nil {
		h.handleError(c, err, "Failed to remove cart item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// ClearCart handles DELETE /cart/all
func (h *CartHandler) ClearCart(c *gin.Context) {
	removed, err := h.cartService.Clear(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.handleError(c, err, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared",
		"removed": removed,
	})
}

// GetCount handles GET /cart/count
func (h *CartHandler) GetCount(c *gin.Context) {
	count, err := h.cartService.Count(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.handleError(c, err, "Failed to count cart items")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ValidateCart handles GET /cart/validate
func (h *CartHandler) ValidateCart(c *gin.Context) {
	result, err := h.cartService.Validate(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.handleError(c, err, "Failed to validate cart")
		return
	}

	c.JSON(http.StatusOK, result)
}

// requireCaller rejects anonymous callers before the body is looked at
func (h *CartHandler) requireCaller(c *gin.Context) (cart.Caller, bool) {
	caller := callerFrom(c)
	if !caller.Authenticated {
		h.handleError(c, cart.ErrUnauthenticated, "")
		return caller, false
	}
	return caller, true
}

func (h *CartHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, cart.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, cart.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrOutOfStock):
		respondError(c, http.StatusBadRequest, "Product is out of stock")
	case errors.Is(err, cart.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(c, http.StatusNotFound, "Cart item not found")
	default:
		respondInternal(c, h.log, err, message)
	}
}

func callerFrom(c *gin.Context) cart.Caller {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return cart.Anonymous()
	}
	return cart.Caller{
		UserID:        userID,
		Authenticated: true,
		IsAdmin:       middleware.IsAdminFromContext(c),
	}
}
