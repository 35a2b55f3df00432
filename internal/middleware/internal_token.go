package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/talentsift/assesshub-backend/internal/response"
)

// RequireInternalToken guards maintenance endpoints with a static shared
// token carried in the X-Internal-Token header. An empty configured token
// disables the endpoints entirely.
func RequireInternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		provided := c.GetHeader("X-Internal-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		c.Next()
	}
}
