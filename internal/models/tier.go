package models

// Known tier names. Tiers are rows, not code; these are the defaults
// seeded at migration time.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

type RateLimitTier struct {
	Name              string `gorm:"primaryKey" json:"name"`
	RequestsPerMinute int    `gorm:"not null" json:"requests_per_minute"`
	RequestsPerHour   int    `gorm:"not null" json:"requests_per_hour"`
	RequestsPerDay    int    `gorm:"not null" json:"requests_per_day"`
	Algorithm         string `gorm:"not null" json:"algorithm"` // "token_bucket" "fixed_window"
}

func (RateLimitTier) TableName() string {
	return "rate_limit_tiers"
}

// DefaultTiers returns the seed policies used when the tier table is empty.
func DefaultTiers() []RateLimitTier {
	return []RateLimitTier{
		{Name: TierFree, RequestsPerMinute: 60, RequestsPerHour: 1000, RequestsPerDay: 10000, Algorithm: "token_bucket"},
		{Name: TierBasic, RequestsPerMinute: 120, RequestsPerHour: 3000, RequestsPerDay: 30000, Algorithm: "token_bucket"},
		{Name: TierPro, RequestsPerMinute: 600, RequestsPerHour: 20000, RequestsPerDay: 200000, Algorithm: "token_bucket"},
		{Name: TierEnterprise, RequestsPerMinute: 3000, RequestsPerHour: 100000, RequestsPerDay: 1000000, Algorithm: "token_bucket"},
	}
}
