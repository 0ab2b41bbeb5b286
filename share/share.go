// Package share computes a commitment's percentage of a project's funding goal.
//
// The computation is exact: amount*100 is divided by the goal with decimal
// arithmetic and rounded half-up to two places. Binary floating point is
// never involved, so every platform produces the same share.
package share

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/fundledger/types"
)

// Places is the number of decimal places of a share.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Compute returns round_half_up(amount / goal * 100, 2).
// A non-positive goal yields zero.
func Compute(amount, goal types.Money) decimal.Decimal {
	if !goal.IsPositive() {
		return decimal.Zero
	}

	num := decimal.NewFromInt(amount.Amount).Mul(hundred)
	den := decimal.NewFromInt(goal.Amount)

	// DivRound rounds half away from zero, which is half-up for the
	// non-negative amounts a commitment carries.
	return num.DivRound(den, Places)
}

// Sum adds shares, e.g. to report how much of a project is allocated.
func Sum(shares ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s)
	}
	return total
}

// Format renders a share with exactly two decimals, e.g. "3.33".
func Format(s decimal.Decimal) string {
	return s.StringFixed(Places)
}
