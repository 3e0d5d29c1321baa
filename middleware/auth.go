package middleware

import (
	"net/http"
	"strings"

	"checkout-service/common/auth"

	"github.com/gin-gonic/gin"
)

const UserKey = "userID"

// AuthMiddleware requires a user: a valid bearer token, or the X-User-ID
// header set by the API gateway after it validated the token itself.
func AuthMiddleware(parser *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveUser(c, parser)
		if !ok {
			return
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserKey, userID)
		c.Next()
	}
}

// OptionalAuth records the user when one is present. A bad token is still
// rejected.
func OptionalAuth(parser *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveUser(c, parser)
		if !ok {
			return
		}
		if userID != "" {
			c.Set(UserKey, userID)
		}
		c.Next()
	}
}

func resolveUser(c *gin.Context, parser *auth.TokenParser) (string, bool) {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found && parser != nil {
		userID, err := parser.ParseUserID(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return "", false
		}
		return userID, true
	}
	return c.GetHeader("X-User-ID"), true
}

func GetUserID(c *gin.Context) string {
	if val, exists := c.Get(UserKey); exists {
		return val.(string)
	}
	return ""
}
