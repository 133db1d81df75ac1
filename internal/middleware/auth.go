package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/apperrors"
)

const bearerPrefix = "Bearer "

// RequireAuth checks the shared-secret Bearer token with a constant-time
// comparison.
func RequireAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			apperrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		provided := []byte(header[len(bearerPrefix):])
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			apperrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
