package middleware

import (
	"net/http"
	"strings"

	"TurnMatch/internal/auth"

	"github.com/gin-gonic/gin"
)

// ContextAddress 由 JWT 解析出的玩家地址在 gin.Context 中的 key
const ContextAddress = "address"

// JwtAuthMiddleware reads "Authorization: Bearer <jwt>", or the "token"
// query parameter for websocket upgrades where browsers cannot set headers.
func JwtAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		address, err := auth.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextAddress, address)
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
