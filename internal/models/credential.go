package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Credential status values. Status is the single source of truth for
// validity; there is no separate is_active column.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
)

type Credential struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID      string     `gorm:"index;not null" json:"owner_id"`
	Name         string     `gorm:"not null" json:"name"`
	KeyPrefix    string     `gorm:"index;not null" json:"key_prefix"`
	KeyHash      string     `gorm:"uniqueIndex;not null" json:"-"`
	KeySuffix    string     `json:"key_suffix"`
	AlgorithmTag string     `gorm:"not null" json:"-"`
	Status       string     `gorm:"default:'active';not null" json:"status"`
	Tier         string     `gorm:"default:'free'" json:"tier"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`

	// Per-key overrides. Zero means "use the tier default".
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerHour   int `json:"rate_limit_per_hour,omitempty"`
	RateLimitPerDay    int `json:"rate_limit_per_day,omitempty"`

	// Best-effort counters, updated asynchronously.
	UsageTotal   int64 `json:"usage_total"`
	UsageSuccess int64 `json:"usage_success"`
	UsageFailed  int64 `json:"usage_failed"`
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Credential) TableName() string {
	return "credentials"
}

// IsActive derives the boolean convenience view from Status.
func (c *Credential) IsActive() bool {
	return c.Status == StatusActive
}

// Expired reports whether the credential has an expiry in the past
// relative to now.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Masked returns the display form of the key, e.g. "xbrl_live_v1...8fk2".
func (c *Credential) Masked() string {
	return c.KeyPrefix + "..." + c.KeySuffix
}

// Limits resolves the effective rate limits for the credential, falling
// back to the tier policy for any window without an override.
func (c *Credential) Limits(tier *RateLimitTier) RateLimits {
	limits := RateLimits{}
	if tier != nil {
		limits.PerMinute = tier.RequestsPerMinute
		limits.PerHour = tier.RequestsPerHour
		limits.PerDay = tier.RequestsPerDay
	}
	if c.RateLimitPerMinute > 0 {
		limits.PerMinute = c.RateLimitPerMinute
	}
	if c.RateLimitPerHour > 0 {
		limits.PerHour = c.RateLimitPerHour
	}
	if c.RateLimitPerDay > 0 {
		limits.PerDay = c.RateLimitPerDay
	}
	return limits
}

// RateLimits is the effective per-window policy for one credential.
type RateLimits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}
