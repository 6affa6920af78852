// internal/interfaces/http/handlers/review.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/domain/product"
	"github.com/your-org/nutrition-store/internal/interfaces/http/middleware"
)

// ReviewHandler handles product review endpoints
type ReviewHandler struct {
	reviewService *product.ReviewService
	log           logrus.FieldLogger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *product.ReviewService, log logrus.FieldLogger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		log:           log,
	}
}

// GetProductReviews handles GET /products/:id/reviews
func (h *ReviewHandler) GetProductReviews(c *gin.Context) {
	productID, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req product.ReviewListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	response, err := h.reviewService.ListByProduct(c.Request.Context(), productID, &req)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviews retrieved successfully",
		"data":    response,
	})
}

// CreateReview handles POST /products/:id/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	productID, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var form product.ReviewForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.reviewService.Create(c.Request.Context(), userID, productID, &form)
	if err != nil {
		h.handleError(c, err, "Failed to create review")
		return
	}

	h.log.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"product_id": productID,
		"user_id":    userID,
	}).Info("review submitted")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted for moderation",
		"data":    review,
	})
}

// DeleteReview handles DELETE /reviews/:id and DELETE /admin/reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid review ID")
		return
	}

	err := h.reviewService.Delete(c.Request.Context(), id, userID, middleware.IsAdminFromContext(c))
	if err != nil {
		h.handleError(c, err, "Failed to delete review")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted successfully"})
}

// AdminGetReviews handles GET /admin/reviews
func (h *ReviewHandler) AdminGetReviews(c *gin.Context) {
	var req product.ReviewListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	response, err := h.reviewService.AdminList(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviews retrieved successfully",
		"data":    response,
	})
}

// AdminModerateReview handles PUT /admin/reviews/:id/moderate
func (h *ReviewHandler) AdminModerateReview(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid review ID")
		return
	}

	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "action is required")
		return
	}

	review, err := h.reviewService.Moderate(c.Request.Context(), id, req.Action)
	if err != nil {
		h.handleError(c, err, "Failed to moderate review")
		return
	}

	h.log.WithFields(logrus.Fields{
		"review_id": id,
		"action":    req.Action,
	}).Info("review moderated")
	c.JSON(http.StatusOK, gin.H{
		"message": "Review updated successfully",
		"data":    review,
	})
}

func (h *ReviewHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, product.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, product.ErrReviewNotFound):
		respondError(c, http.StatusNotFound, "Review not found")
	case errors.Is(err, product.ErrAlreadyReviewed):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, product.ErrReviewForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	default:
		respondInternal(c, h.log, err, message)
	}
}
