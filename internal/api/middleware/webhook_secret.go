package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/zapfunil/zapfunil/internal/utils"
)

// WebhookSecret authenticates the provider's webhook calls with a shared
// secret header. Transport-level signature parsing lives at the provider's
// edge, not here.
func WebhookSecret() gin.HandlerFunc {
	secret := os.Getenv("WEBHOOK_SECRET")

	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "WEBHOOK_SECRET is not set",
			})
			return
		}

		got := c.GetHeader("X-Webhook-Secret")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid webhook secret",
			})
			return
		}
		c.Next()
	}
}
