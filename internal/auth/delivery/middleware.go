package delivery

import (
	"net/http"
	"strings"

	"jobtrail-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const accountIDKey = "accountID"

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required", "kind": "unauthorized"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format", "kind": "unauthorized"})
			return
		}

		accountID, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "kind": "unauthorized"})
			return
		}

		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// AccountID returns the authenticated account set by AuthMiddleware.
func AccountID(c *gin.Context) string {
	return c.GetString(accountIDKey)
}
