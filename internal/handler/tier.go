package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xbrldata/keygate/internal/repository"
)

// TierHandler reports the rate limit tier policies and how many active
// keys sit on each.
type TierHandler struct {
	tiers *repository.TierRepository
	creds *repository.CredentialRepository
}

func NewTierHandler(tiers *repository.TierRepository, creds *repository.CredentialRepository) *TierHandler {
	return &TierHandler{tiers: tiers, creds: creds}
}

func (h *TierHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tiers, err := h.tiers.List(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	out := make([]gin.H, 0, len(tiers))
	for _, tier := range tiers {
		count, err := h.creds.CountByTier(ctx, tier.Name)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		}
		out = append(out, gin.H{
			"tier":        tier,
			"active_keys": count,
		})
	}

	c.JSON(http.StatusOK, out)
}
