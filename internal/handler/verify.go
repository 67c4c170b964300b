package handler

import (
	"errors"
	"log"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/models"
	"github.com/xbrldata/keygate/internal/ratelimit"
	"github.com/xbrldata/keygate/internal/service"
)

// VerifyHandler exposes verification and quota consumption to trusted
// data-plane callers that cannot run in-process middleware.
type VerifyHandler struct {
	service *service.APIKeyService
	limiter *ratelimit.Tiered
}

func NewVerifyHandler(service *service.APIKeyService, limiter *ratelimit.Tiered) *VerifyHandler {
	return &VerifyHandler{service: service, limiter: limiter}
}

// Verify checks a presented key. The response never distinguishes
// between malformed, unknown, mismatched or revoked keys.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Verify(c.Request.Context(), req.Key)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		}

		log.Printf("[%s] verify rejected: %v", c.GetString("request_id"), err)

		reason := "invalid"
		if errors.Is(err, service.ErrExpired) {
			reason = "expired"
		}
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":         true,
		"credential_id": result.CredentialID,
		"owner_id":      result.OwnerID,
		"tier":          result.Tier,
		"rate_limits":   result.Limits,
	})
}

// Consume takes tokens from the credential's buckets on behalf of the
// data plane.
func (h *VerifyHandler) Consume(c *gin.Context) {
	var req struct {
		CredentialID string            `json:"credential_id" binding:"required"`
		Limits       models.RateLimits `json:"rate_limits"`
		Cost         int               `json:"cost"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := uuid.Parse(req.CredentialID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential_id"})
		return
	}

	decision, err := h.limiter.Consume(c.Request.Context(), req.CredentialID, req.Limits, req.Cost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return
	}

	resp := gin.H{
		"allowed":   decision.Allowed,
		"remaining": decision.Remaining,
	}
	if !decision.Allowed {
		resp["retry_after"] = int(math.Ceil(decision.RetryAfter.Seconds()))
	}

	c.JSON(http.StatusOK, resp)
}
