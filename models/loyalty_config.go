package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoyaltyConfig is a key/value store for loyalty tuning. Values are read
// per settlement call, never cached, so changes apply to the next
// transaction. A missing key always resolves to its documented default.
type LoyaltyConfig struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Key         string     `gorm:"uniqueIndex;not null" json:"key"`
	Value       string     `gorm:"not null" json:"value"`
	Description string     `json:"description"`
	UpdatedBy   *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c *LoyaltyConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	ConfigBaseEarningRate       = "base_earning_rate"
	ConfigWalletBonusMultiplier = "wallet_bonus_multiplier"
	ConfigPointsEnabled         = "points_enabled"
	ConfigPointsExpiryEnabled   = "points_expiry_enabled"
	ConfigPointsExpiryMonths    = "points_expiry_months"
	ConfigExpiryWarningDays     = "expiry_warning_days"
	ConfigTierThresholds        = "tier_thresholds"
	ConfigTopUpBonuses          = "top_up_bonuses"
)

// DefaultLoyaltyConfig seeds the config table and doubles as the fallback
// when a key is absent. Tier thresholds and top-up bonus tiers are JSON,
// all point values in x100 storage format.
var DefaultLoyaltyConfig = map[string]string{
	ConfigBaseEarningRate:       "1.0",
	ConfigWalletBonusMultiplier: "1.5",
	ConfigPointsEnabled:         "true",
	ConfigPointsExpiryEnabled:   "false",
	ConfigPointsExpiryMonths:    "12",
	ConfigExpiryWarningDays:     "30",
	ConfigTierThresholds:        `[{"name":"Bronze","threshold":0},{"name":"Silver","threshold":500000},{"name":"Gold","threshold":1500000},{"name":"Platinum","threshold":5000000}]`,
	ConfigTopUpBonuses:          `[{"amount":50000,"bonus":5000},{"amount":100000,"bonus":15000}]`,
}
