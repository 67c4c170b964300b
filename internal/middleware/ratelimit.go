package middleware

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/models"
	"github.com/xbrldata/keygate/internal/ratelimit"
)

// TierRateLimit throttles each credential using the limits resolved by
// VerifyAPIKey, which must run earlier in the chain. Minute, hour and
// day buckets are all consulted; a reject answers 429 with a Retry-After
// hint and costs the caller nothing.
func TierRateLimit(limiter *ratelimit.Tiered) gin.HandlerFunc {
	return func(c *gin.Context) {
		idValue, exists := c.Get(ContextKeyCredentialID)
		if !exists {
			// Route is not key-authenticated; nothing to meter.
			c.Next()
			return
		}

		credentialID := idValue.(uuid.UUID)
		limits, _ := c.Get(ContextKeyLimits)
		rateLimits, _ := limits.(models.RateLimits)

		decision, err := limiter.Consume(c.Request.Context(), credentialID.String(), rateLimits, 1)
		if err != nil {
			requestID := c.GetString("request_id")
			log.Printf("[%s] rate limit check failed: %v", requestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rateLimits.PerMinute))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(decision.RetryAfter).Unix()))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"tier":        c.GetString(ContextKeyTier),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
