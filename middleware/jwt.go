package middleware

import (
	"net/http"
	"strings"

	"bitwise74/account-api/db"
	"bitwise74/account-api/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewJWTMiddleware guards authenticated endpoints. It expects an
// "Authorization: Bearer <token>" header, checks the signature and
// expiry and loads the account the claims point at into the context
// as "user"/"userID".
func NewJWTMiddleware(users *db.Users, tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Access denied. No token provided",
				"requestID": requestID,
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Invalid token",
				"requestID": requestID,
			})

			zap.L().Debug("Failed to verify token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		// Tokens outlive accounts, so check the subject still exists
		user, err := users.ByClaims(c.Request.Context(), claims)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"error":     "User not found",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}
