package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"freightpay/internal/domain"
	"freightpay/internal/redis"
)

const sessionContextKey = "session"

// AuthMiddleware returns middleware that resolves the bearer token
// against the session store and attaches the session to the context.
func AuthMiddleware(sessions redis.SessionStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		session, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// SessionFromContext returns the authenticated session, or nil when the
// request did not pass through AuthMiddleware.
func SessionFromContext(c *gin.Context) *domain.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, ok := value.(*domain.Session)
	if !ok {
		return nil
	}
	return session
}
