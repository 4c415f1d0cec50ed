package ledger

import "github.com/shopspring/decimal"

// Money and points values are persisted as signed integers holding the
// amount x100 (two implied decimal places). One point's redemption value
// equals one peso. Conversion always rounds half up; callers are
// responsible for rejecting negative amounts where they are invalid.

// ToStorage converts a decimal amount to the x100 storage format.
func ToStorage(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromStorage converts a stored x100 integer back to a decimal amount.
func FromStorage(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// ParseAmount converts a JSON number (pesos or points) to storage format.
func ParseAmount(f float64) int64 {
	return ToStorage(decimal.NewFromFloat(f))
}

// ToFloat renders a stored value for JSON responses.
func ToFloat(v int64) float64 {
	f, _ := FromStorage(v).Float64()
	return f
}
