// internal/interfaces/http/handlers/product.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/domain/product"
)

// ProductHandler handles product endpoints
type ProductHandler struct {
	productService *product.Service
	log            logrus.FieldLogger
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *product.Service, log logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		log:            log,
	}
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	var req product.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	response, err := h.productService.List(c.Request.Context(), &req)
	if err != nil {
		respondInternal(c, h.log, err, "Failed to retrieve products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data":    response,
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	p, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    p,
	})
}

// GetProductBySlug handles GET /products/slug/:slug
func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	p, err := h.productService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.handleError(c, err, "Failed to retrieve product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    p,
	})
}

// AdminCreateProduct handles POST /admin/products
func (h *ProductHandler) AdminCreateProduct(c *gin.Context) {
	var form product.ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.productService.Create(c.Request.Context(), &form)
	if err != nil {
		h.handleError(c, err, "Failed to create product")
		return
	}

	h.log.WithField("product_id", p.ID).Info("product created")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"data":    p,
	})
}

// AdminUpdateProduct handles PUT /admin/products/:id
func (h *ProductHandler) AdminUpdateProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var form product.ProductForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.productService.Update(c.Request.Context(), id, &form)
	if err != nil {
		h.handleError(c, err, "Failed to update product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"data":    p,
	})
}

// AdminDeleteProduct handles DELETE /admin/products/:id
func (h *ProductHandler) AdminDeleteProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := h.productService.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err, "Failed to delete product")
		return
	}

	h.log.WithField("product_id", id).Info("product deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// AdminUpdateStock handles PUT /admin/products/:id/stock
func (h *ProductHandler) AdminUpdateStock(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req struct {
		InStock *bool `json:"inStock" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "inStock is required")
		return
	}

	if err := h.productService.SetStock(c.Request.Context(), id, *req.InStock); err != nil {
		h.handleError(c, err, "Failed to update stock")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock updated successfully",
		"data":    gin.H{"id": id, "inStock": *req.InStock},
	})
}

func (h *ProductHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, product.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrCategoryNotFound):
		respondError(c, http.StatusBadRequest, "Category does not exist")
	case errors.Is(err, product.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, product.ErrSlugTaken):
		respondError(c, http.StatusConflict, err.Error())
	default:
		respondInternal(c, h.log, err, message)
	}
}
