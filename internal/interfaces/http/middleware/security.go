// internal/interfaces/http/middleware/security.go
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/nutrition-store/internal/config"
)

// SecurityHeaders sets the response hardening headers configured under Security.
// Empty values are skipped. HSTS is only sent when a max age is configured.
func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	headers := [][2]string{
		{"X-Frame-Options", cfg.Security.FrameOptions},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", cfg.Security.ReferrerPolicy},
		{"Content-Security-Policy", cfg.Security.ContentSecurityPolicy},
		{"Server", cfg.App.Name},
	}
	if cfg.Security.HSTSMaxAge > 0 {
		headers = append(headers, [2]string{
			"Strict-Transport-Security",
			"max-age=" + strconv.FormatInt(int64(cfg.Security.HSTSMaxAge.Seconds()), 10) + "; includeSubDomains",
		})
	}

	return func(c *gin.Context) {
		for _, h := range headers {
			if h[1] != "" {
				c.Header(h[0], h[1])
			}
		}
		c.Next()
	}
}
