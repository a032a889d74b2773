// Package auth guards the management API. Frame uploads and the live feed
// stay open; everything under /v1 requires the shared key.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const headerAPIKey = "X-API-Key"

// APIKeyMiddleware checks the shared API key. It reads the X-API-Key header,
// falling back to the api_key query parameter because browser WebSocket
// clients cannot set custom headers on the /v1/ws upgrade. An empty
// configured key disables the check.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(headerAPIKey)
		if provided == "" {
			provided = c.Query("api_key")
		}
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
