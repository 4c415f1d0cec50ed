package ledger

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"barberops-backend/models"
)

// Rates are the earning parameters in effect for a single settlement call.
type Rates struct {
	BaseEarningRate       decimal.Decimal
	WalletBonusMultiplier decimal.Decimal
	PointsEnabled         bool
}

// ResolveRates builds Rates from a config snapshot. It is a pure function:
// callers read the snapshot at settlement time so config changes apply to
// the next transaction, never retroactively. Missing or malformed keys
// fall back to the documented defaults.
func ResolveRates(snapshot map[string]string) Rates {
	rates := Rates{
		BaseEarningRate:       decimal.NewFromInt(1),
		WalletBonusMultiplier: decimal.NewFromFloat(1.5),
		PointsEnabled:         true,
	}
	if raw, ok := snapshot[models.ConfigBaseEarningRate]; ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			rates.BaseEarningRate = d
		}
	}
	if raw, ok := snapshot[models.ConfigWalletBonusMultiplier]; ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			rates.WalletBonusMultiplier = d
		}
	}
	if raw, ok := snapshot[models.ConfigPointsEnabled]; ok {
		if b, err := strconv.ParseBool(raw); err == nil {
			rates.PointsEnabled = b
		}
	}
	return rates
}

// LoadConfigSnapshot reads the loyalty config table into a plain map.
func LoadConfigSnapshot(db *gorm.DB) map[string]string {
	snapshot := make(map[string]string)
	var rows []models.LoyaltyConfig
	if err := db.Find(&rows).Error; err != nil {
		return snapshot
	}
	for _, row := range rows {
		snapshot[row.Key] = row.Value
	}
	return snapshot
}

// EarnedAtRate applies an earning rate to a stored x100 amount, rounding
// half up to a whole stored value.
func EarnedAtRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.New(amount, 0).Mul(rate).Round(0).IntPart()
}

// TopUpBonusTier awards Bonus points when a single wallet top-up reaches
// Amount. Both values are x100 storage format.
type TopUpBonusTier struct {
	Amount int64 `json:"amount"`
	Bonus  int64 `json:"bonus"`
}

// DefaultTopUpBonuses: 50 points at a 500-peso top-up, 150 at 1000.
var DefaultTopUpBonuses = []TopUpBonusTier{
	{Amount: 50000, Bonus: 5000},
	{Amount: 100000, Bonus: 15000},
}

// TopUpBonus returns the bonus points for a top-up of the given size: the
// bonus of the largest tier the amount reaches, zero when it reaches
// none. Malformed config falls back to the defaults.
func TopUpBonus(snapshot map[string]string, amount int64) int64 {
	tiers := DefaultTopUpBonuses
	if raw, ok := snapshot[models.ConfigTopUpBonuses]; ok {
		var parsed []TopUpBonusTier
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && len(parsed) > 0 {
			tiers = parsed
		}
	}

	var bonus int64
	best := int64(-1)
	for _, tier := range tiers {
		if amount >= tier.Amount && tier.Amount > best {
			best = tier.Amount
			bonus = tier.Bonus
		}
	}
	return bonus
}
