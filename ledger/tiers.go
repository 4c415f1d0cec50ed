package ledger

import (
	"encoding/json"
	"sort"

	"barberops-backend/models"
)

// Tier is one rung of the VIP ladder. Threshold is lifetime earned points
// in x100 storage format; a customer holds the highest tier whose
// threshold their lifetime earnings have reached. Redemptions never cost
// a tier, since the ladder reads lifetime_earned, not the balance.
type Tier struct {
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// DefaultTiers is the ladder used when tier_thresholds is absent from
// config: Bronze from zero, Silver at 5000 points, Gold at 15000,
// Platinum at 50000.
var DefaultTiers = []Tier{
	{Name: "Bronze", Threshold: 0},
	{Name: "Silver", Threshold: 500000},
	{Name: "Gold", Threshold: 1500000},
	{Name: "Platinum", Threshold: 5000000},
}

// ResolveTiers builds the ladder from a config snapshot, sorted by
// threshold ascending. Missing or malformed config falls back to the
// defaults, never an error.
func ResolveTiers(snapshot map[string]string) []Tier {
	raw, ok := snapshot[models.ConfigTierThresholds]
	if !ok {
		return DefaultTiers
	}
	var tiers []Tier
	if err := json.Unmarshal([]byte(raw), &tiers); err != nil || len(tiers) == 0 {
		return DefaultTiers
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	return tiers
}

// TierFor returns the name of the highest tier whose threshold the
// lifetime earnings meet.
func TierFor(tiers []Tier, lifetimeEarned int64) string {
	name := tiers[0].Name
	for _, tier := range tiers {
		if lifetimeEarned >= tier.Threshold {
			name = tier.Name
		}
	}
	return name
}

// tierRank positions a tier name on the ladder, -1 when it is not there.
// Promotion compares ranks so a customer is never demoted by a config
// change that lowers a threshold.
func tierRank(tiers []Tier, name string) int {
	for i, tier := range tiers {
		if tier.Name == name {
			return i
		}
	}
	return -1
}
