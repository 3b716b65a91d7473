package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"foliopulse/api/utils"

	"github.com/gin-gonic/gin"
)

// AdminRequired guards the stats dashboard endpoints. It accepts either the
// static admin API key or a JWT minted by the portfolio admin console.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-KEY")
		adminKey := os.Getenv("ADMIN_API_KEY")
		if adminKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(adminKey)) == 1 {
			c.Next()
			return
		}

		tokenString, err := c.Cookie("jwt_token")
		if err != nil {
			tokenString = c.GetHeader("Authorization")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
				return
			}
			if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
				tokenString = tokenString[7:]
			}
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("admin_email", claims.Email)
		c.Next()
	}
}

// CronSecretRequired guards the scheduled job triggers with the shared
// secret header the external cron sends.
func CronSecretRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := os.Getenv("CRON_SECRET")
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Cron trigger is not configured"})
			return
		}
		provided := c.GetHeader("X-Cron-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
