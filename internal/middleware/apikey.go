package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xbrldata/keygate/internal/service"
)

// Context keys set by VerifyAPIKey on success.
const (
	ContextKeyCredentialID = "credential_id"
	ContextKeyOwnerID      = "owner_id"
	ContextKeyTier         = "tier"
	ContextKeyLimits       = "rate_limits"
)

// VerifyAPIKey authenticates the request with the X-API-Key header (or
// a Bearer token carrying the key). Format, lookup, digest and status
// failures all produce the same 401 body - the specific stage is only
// logged. Store failures fail closed with a 503, never "invalid key".
func VerifyAPIKey(apiKeys *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader("X-API-Key")
		if presented == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		presented = strings.TrimSpace(presented)

		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		result, err := apiKeys.Verify(ctx, presented)
		if err != nil {
			requestID := c.GetString("request_id")

			if errors.Is(err, service.ErrStoreUnavailable) {
				log.Printf("[%s] verify: store unavailable: %v", requestID, err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
				c.Abort()
				return
			}

			// Internal log keeps the stage; the response does not.
			log.Printf("[%s] verify rejected: %v", requestID, err)

			if errors.Is(err, service.ErrExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "API key expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyCredentialID, result.CredentialID)
		c.Set(ContextKeyOwnerID, result.OwnerID)
		c.Set(ContextKeyTier, result.Tier)
		c.Set(ContextKeyLimits, result.Limits)

		c.Next()
	}
}
