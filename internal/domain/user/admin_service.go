// internal/domain/user/admin_service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCannotModifySelf = errors.New("admins cannot deactivate or demote their own account")
	ErrLastAdmin        = errors.New("at least one active admin must remain")
	ErrInvalidFilter    = errors.New("invalid filter")
)

// AdminService handles admin user management operations
type AdminService struct {
	db *gorm.DB
}

// NewAdminService creates a new admin user service
func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// UserListRequest represents user list query parameters
type UserListRequest struct {
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	Search    string `form:"search"`
	Status    string `form:"status"` // active, inactive, all
	Role      string `form:"role"`   // admin, customer, all
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}

// UserListResponse represents a page of users
type UserListResponse struct {
	Users      []User `json:"users"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

// UserWithStats represents a user with their storefront activity
type UserWithStats struct {
	User
	ReviewCount   int64 `json:"reviewCount"`
	CartItemCount int64 `json:"cartItemCount"`
}

// List retrieves users with filtering and pagination
func (s *AdminService) List(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&User{})

	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ?",
			like, like, like, "%"+search+"%",
		)
	}

	switch req.Status {
	case "", "all":
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	default:
		return nil, fmt.Errorf("%w: status must be one of active, inactive, all", ErrInvalidFilter)
	}

	switch req.Role {
	case "", "all":
	case "admin":
		query = query.Where("is_admin = ?", true)
	case "customer":
		query = query.Where("is_admin = ?", false)
	default:
		return nil, fmt.Errorf("%w: role must be one of admin, customer, all", ErrInvalidFilter)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	users := make([]User, 0, req.Limit)
	err := query.
		Order(buildUserOrderClause(req.SortBy, req.SortOrder)).
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %w", err)
	}

	return &UserListResponse{
		Users:      users,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: int((total + int64(req.Limit) - 1) / int64(req.Limit)),
	}, nil
}

// Get retrieves a single user with their review and cart activity
func (s *AdminService) Get(ctx context.Context, id uint) (*UserWithStats, error) {
	db := s.db.WithContext(ctx)

	var u User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	stats := &UserWithStats{User: u}
	if err := db.Table("product_reviews").Where("user_id = ?", id).Count(&stats.ReviewCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}
	err := db.Table("cart_lines").
		Select("COALESCE(SUM(quantity), 0)").
		Where("user_id = ?", id).
		Scan(&stats.CartItemCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count cart items: %w", err)
	}

	return stats, nil
}

// SetActive activates or deactivates a user. Deactivated users cannot log in or
// refresh tokens; access tokens already issued expire on their own.
func (s *AdminService) SetActive(ctx context.Context, adminID, userID uint, active bool) (*User, error) {
	if userID == adminID && !active {
		return nil, ErrCannotModifySelf
	}
	return s.update(ctx, userID, "is_active", active)
}

// SetAdmin grants or revokes admin rights
func (s *AdminService) SetAdmin(ctx context.Context, adminID, userID uint, isAdmin bool) (*User, error) {
	if userID == adminID && !isAdmin {
		return nil, ErrCannotModifySelf
	}
	return s.update(ctx, userID, "is_admin", isAdmin)
}

// update flips one flag inside a transaction that locks the user row and keeps an
// active admin around
func (s *AdminService) update(ctx context.Context, userID uint, column string, value bool) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to find user: %w", err)
		}

		if u.IsAdmin && u.IsActive && !value {
			var admins int64
			if err := tx.Model(&User{}).Where("is_admin = ? AND is_active = ?", true, true).Count(&admins).Error; err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		if err := tx.Model(&u).Update(column, value).Error; err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func buildUserOrderClause(sortBy, sortOrder string) string {
	columns := map[string]string{
		"createdAt":   "created_at",
		"email":       "email",
		"lastLoginAt": "last_login_at",
	}

	column, ok := columns[sortBy]
	if !ok {
		column = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id %s", column, sortOrder, sortOrder)
}
