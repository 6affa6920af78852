// internal/interfaces/http/handlers/response.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/interfaces/http/middleware"
)

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondInternal logs the cause and hides it from the client
func respondInternal(c *gin.Context, log logrus.FieldLogger, err error, message string) {
	entry := log.WithError(err).WithField("request_id", middleware.GetRequestID(c))
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		entry = entry.WithField("user_id", userID)
	}
	entry.Error(message)

	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, message)
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
