package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/service"
)

// APIKeyHandler exposes the issuance and management API consumed by the
// surrounding web app.
type APIKeyHandler struct {
	service *service.APIKeyService
}

func NewAPIKeyHandler(service *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

// Create issues a new key. The plaintext appears in this response and
// nowhere else, ever.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req struct {
		OwnerID  string `json:"owner_id" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Tier     string `json:"tier" binding:"required"`
		TTLHours int    `json:"ttl_hours"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	issued, err := h.service.Issue(ctx, req.OwnerID, req.Name, req.Tier, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":     issued.PlainKey,
		"record":  issued.Record,
		"message": "Save this key - it won't be shown again",
	})
}

func (h *APIKeyHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	creds, err := h.service.List(ctx, c.Query("owner_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, creds)
}

func (h *APIKeyHandler) Get(c *gin.Context) {
	id, ownerID, ok := h.idAndOwner(c)
	if !ok {
		return
	}

	cred, err := h.service.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cred)
}

func (h *APIKeyHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	var req struct {
		OwnerID string  `json:"owner_id" binding:"required"`
		Name    *string `json:"name"`
		Tier    *string `json:"tier"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == nil && req.Tier == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	ctx := c.Request.Context()
	if req.Name != nil {
		if err := h.service.UpdateName(ctx, id, req.OwnerID, *req.Name); err != nil {
			writeServiceError(c, err)
			return
		}
	}
	if req.Tier != nil {
		if err := h.service.UpdateTier(ctx, id, req.OwnerID, *req.Tier); err != nil {
			if errors.Is(err, service.ErrUnknownTier) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			writeServiceError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key updated successfully"})
}

// Rotate swaps the secret on an existing key. Like Create, the new
// plaintext is shown exactly once.
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	id, ownerID, ok := h.idAndOwner(c)
	if !ok {
		return
	}

	issued, err := h.service.Rotate(c.Request.Context(), id, ownerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":     issued.PlainKey,
		"record":  issued.Record,
		"message": "Save this key - it won't be shown again",
	})
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	id, ownerID, ok := h.idAndOwner(c)
	if !ok {
		return
	}

	if err := h.service.Revoke(c.Request.Context(), id, ownerID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// idAndOwner pulls the key id from the path and the acting owner from
// the owner_id query parameter (or JSON body for bodyless verbs).
func (h *APIKeyHandler) idAndOwner(c *gin.Context) (uuid.UUID, string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return uuid.Nil, "", false
	}

	ownerID := c.Query("owner_id")
	if ownerID == "" {
		var req struct {
			OwnerID string `json:"owner_id"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			ownerID = req.OwnerID
		}
	}
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return uuid.Nil, "", false
	}

	return id, ownerID, true
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
	case errors.Is(err, service.ErrInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "API key is not active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
