package money

import "github.com/shopspring/decimal"

var bpsDenominator = decimal.NewFromInt(10000)

// ApplyBPS returns cents scaled by a basis-point rate, rounded half-up to the
// nearest cent. Rate math goes through decimals so repeated commission and tax
// derivations never accumulate float drift.
func ApplyBPS(cents int, bps int64) int {
	if cents == 0 || bps == 0 {
		return 0
	}
	amount := decimal.NewFromInt(int64(cents)).
		Mul(decimal.NewFromInt(bps)).
		Div(bpsDenominator).
		Round(0)
	return int(amount.IntPart())
}
