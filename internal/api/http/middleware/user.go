package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserMiddleware resolves the caller identity from the X-User-Id header set
// by the auth proxy in front of this service.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": "missing user id",
			})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}
