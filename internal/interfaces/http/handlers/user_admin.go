// internal/interfaces/http/handlers/user_admin.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/domain/user"
	"github.com/your-org/nutrition-store/internal/interfaces/http/middleware"
)

// UserAdminHandler handles admin user management endpoints
type UserAdminHandler struct {
	adminService *user.AdminService
	log          logrus.FieldLogger
}

// NewUserAdminHandler creates a new user admin handler
func NewUserAdminHandler(adminService *user.AdminService, log logrus.FieldLogger) *UserAdminHandler {
	return &UserAdminHandler{
		adminService: adminService,
		log:          log,
	}
}

// GetUsers handles GET /admin/users
func (h *UserAdminHandler) GetUsers(c *gin.Context) {
	var req user.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	response, err := h.adminService.List(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Users retrieved successfully",
		"data":    response,
	})
}

// GetUser handles GET /admin/users/:id
func (h *UserAdminHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	u, err := h.adminService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User retrieved successfully",
		"data":    u,
	})
}

// UpdateUserStatus handles PUT /admin/users/:id/status
func (h *UserAdminHandler) UpdateUserStatus(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	h.update(c, &req, func(adminID, id uint) (*user.User, error) {
		return h.adminService.SetActive(c.Request.Context(), adminID, id, *req.IsActive)
	}, "isActive is required", "User status updated successfully")
}

// UpdateUserRole handles PUT /admin/users/:id/role
func (h *UserAdminHandler) UpdateUserRole(c *gin.Context) {
	var req struct {
		IsAdmin *bool `json:"isAdmin" binding:"required"`
	}
	h.update(c, &req, func(adminID, id uint) (*user.User, error) {
		return h.adminService.SetAdmin(c.Request.Context(), adminID, id, *req.IsAdmin)
	}, "isAdmin is required", "User role updated successfully")
}

func (h *UserAdminHandler) update(c *gin.Context, body interface{}, apply func(adminID, id uint) (*user.User, error), invalid, success string) {
	adminID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := c.ShouldBindJSON(body); err != nil {
		respondError(c, http.StatusBadRequest, invalid)
		return
	}

	u, err := apply(adminID, id)
	if err != nil {
		h.handleError(c, err, "Failed to update user")
		return
	}

	h.log.WithFields(logrus.Fields{
		"admin_id":  adminID,
		"user_id":   u.ID,
		"is_active": u.IsActive,
		"is_admin":  u.IsAdmin,
	}).Info("user updated by admin")
	c.JSON(http.StatusOK, gin.H{
		"message": success,
		"data":    u,
	})
}

func (h *UserAdminHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, user.ErrInvalidFilter):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, user.ErrCannotModifySelf), errors.Is(err, user.ErrLastAdmin):
		respondError(c, http.StatusConflict, err.Error())
	default:
		respondInternal(c, h.log, err, message)
	}
}
