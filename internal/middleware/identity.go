// internal/middleware/identity.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the caller's opaque user id. The marketplace does no
// authentication of its own; whatever sits in front of it vouches for the id.
const UserIDHeader = "X-User-ID"

const maxUserIDLength = 255

func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID != "" && len(userID) <= maxUserIDLength {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
