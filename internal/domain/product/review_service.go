// internal/domain/product/review_service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Moderation actions
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// ReviewService handles review business logic
type ReviewService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewReviewService creates a new review service
func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{
		db:       db,
		validate: newValidator(),
	}
}

// ReviewForm is the body of a new review
type ReviewForm struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"max=255"`
	Content string `json:"content" validate:"required,min=10,max=5000"`
}

// ReviewListRequest represents review list query parameters
type ReviewListRequest struct {
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	Rating    int    `form:"rating"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`

	// Admin listing only
	ProductID uint   `form:"productId"`
	Status    string `form:"status"` // pending, approved, all
}

// ReviewSummary aggregates the approved reviews of a product
type ReviewSummary struct {
	AverageRating   float64       `json:"averageRating"`
	TotalReviews    int64         `json:"totalReviews"`
	RatingBreakdown map[int]int64 `json:"ratingBreakdown"`
}

// ReviewListResponse represents a page of reviews
type ReviewListResponse struct {
	Reviews    []ProductReview `json:"reviews"`
	Pagination Pagination      `json:"pagination"`
	Summary    *ReviewSummary  `json:"summary,omitempty"`
}

// Create adds the user's review of a product. New reviews wait for moderation.
func (s *ReviewService) Create(ctx context.Context, userID, productID uint, form *ReviewForm) (*ProductReview, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Content = strings.TrimSpace(form.Content)
	if err := validateStruct(s.validate, form); err != nil {
		return nil, err
	}

	review := ProductReview{
		ProductID: productID,
		UserID:    userID,
		Rating:    form.Rating,
		Title:     form.Title,
		Content:   form.Content,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProduct(tx, productID); err != nil {
			return err
		}

		// The unique (product_id, user_id) index settles concurrent submissions
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&review)
		if result.Error != nil {
			return fmt.Errorf("failed to create review: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.get(ctx, review.ID)
}

// ListByProduct returns a page of a product's approved reviews and their summary
func (s *ReviewService) ListByProduct(ctx context.Context, productID uint, req *ReviewListRequest) (*ReviewListResponse, error) {
	if err := ensureProduct(s.db.WithContext(ctx), productID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&ProductReview{}).
		Where("product_reviews.product_id = ? AND product_reviews.is_approved = ?", productID, true)
	if req.Rating > 0 {
		query = query.Where("product_reviews.rating = ?", req.Rating)
	}

	response, err := s.page(ctx, query, req)
	if err != nil {
		return nil, err
	}

	summary, err := s.Summary(ctx, productID)
	if err != nil {
		return nil, err
	}
	response.Summary = summary
	return response, nil
}

// AdminList returns reviews across products for moderation, newest first by default
func (s *ReviewService) AdminList(ctx context.Context, req *ReviewListRequest) (*ReviewListResponse, error) {
	query := s.db.WithContext(ctx).Model(&ProductReview{})

	switch req.Status {
	case "", "all":
	case "pending":
		query = query.Where("product_reviews.is_approved = ?", false)
	case "approved":
		query = query.Where("product_reviews.is_approved = ?", true)
	default:
		return nil, fmt.Errorf("%w: status must be one of pending, approved, all", ErrValidation)
	}
	if req.ProductID > 0 {
		query = query.Where("product_reviews.product_id = ?", req.ProductID)
	}
	if req.Rating > 0 {
		query = query.Where("product_reviews.rating = ?", req.Rating)
	}

	return s.page(ctx, query, req)
}

// Summary aggregates a product's approved reviews. The average is rounded to two places.
func (s *ReviewService) Summary(ctx context.Context, productID uint) (*ReviewSummary, error) {
	var rows []struct {
		Rating int
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&ProductReview{}).
		Select("rating, COUNT(*) AS count").
		Where("product_id = ? AND is_approved = ?", productID, true).
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reviews: %w", err)
	}

	summary := &ReviewSummary{RatingBreakdown: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var points int64
	for _, row := range rows {
		summary.RatingBreakdown[row.Rating] = row.Count
		summary.TotalReviews += row.Count
		points += int64(row.Rating) * row.Count
	}
	if summary.TotalReviews > 0 {
		summary.AverageRating = decimal.NewFromInt(points).
			DivRound(decimal.NewFromInt(summary.TotalReviews), 2).
			InexactFloat64()
	}
	return summary, nil
}

// Moderate approves or rejects a review. Rejected reviews stay stored but hidden.
func (s *ReviewService) Moderate(ctx context.Context, id uint, action string) (*ProductReview, error) {
	var approved bool
	switch action {
	case ReviewApprove:
		approved = true
	case ReviewReject:
	default:
		return nil, fmt.Errorf("%w: action must be approve or reject", ErrValidation)
	}

	result := s.db.WithContext(ctx).Model(&ProductReview{}).
		Where("id = ?", id).
		Update("is_approved", approved)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to moderate review: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrReviewNotFound
	}

	return s.get(ctx, id)
}

// Delete removes a review. Only its author or an admin may delete it.
func (s *ReviewService) Delete(ctx context.Context, id, userID uint, isAdmin bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review ProductReview
		if err := tx.Where("id = ?", id).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("failed to find review: %w", err)
		}

		if !isAdmin && review.UserID != userID {
			return ErrReviewForbidden
		}

		if err := tx.Delete(&review).Error; err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return nil
	})
}

func (s *ReviewService) get(ctx context.Context, id uint) (*ProductReview, error) {
	var review ProductReview
	err := withAuthor(s.db.WithContext(ctx).Model(&ProductReview{})).
		Where("product_reviews.id = ?", id).
		Take(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to retrieve review: %w", err)
	}
	return &review, nil
}

// page counts the filtered query, then loads one page of it with author names
func (s *ReviewService) page(ctx context.Context, query *gorm.DB, req *ReviewListRequest) (*ReviewListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	reviews := make([]ProductReview, 0, req.Limit)
	err := withAuthor(query).
		Order(buildReviewOrderClause(req.SortBy, req.SortOrder)).
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve reviews: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &ReviewListResponse{
		Reviews: reviews,
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

func withAuthor(query *gorm.DB) *gorm.DB {
	return query.
		Select("product_reviews.*, users.first_name AS author_name").
		Joins("LEFT JOIN users ON users.id = product_reviews.user_id")
}

func ensureProduct(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if count == 0 {
		return ErrProductNotFound
	}
	return nil
}

func buildReviewOrderClause(sortBy, sortOrder string) string {
	columns := map[string]string{
		"createdAt": "product_reviews.created_at",
		"rating":    "product_reviews.rating",
	}

	column, ok := columns[sortBy]
	if !ok {
		column = "product_reviews.created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, product_reviews.id %s", column, sortOrder, sortOrder)
}
