package bidpolicy

import "github.com/shopspring/decimal"

// Quick-bid multiplier spreads by price band. The spread narrows as prices
// climb so a one-tap bid never jumps by an absurd amount on expensive items.
var (
	bandMid  = decimal.NewFromInt(100)
	bandHigh = decimal.NewFromInt(1000)

	spreadLow  = []int64{1, 2, 5}
	spreadMid  = []int64{1, 2, 4}
	spreadHigh = []int64{1, 2, 3}
)

// QuickBidOptions returns three precomputed fast-bid amounts above the
// given price. When overrideIncrement is positive it replaces the policy
// increment, letting callers honor a server-supplied increment. This is a
// presentation convenience; submitted amounts are still validated.
func (p *Policy) QuickBidOptions(price decimal.Decimal, overrideIncrement decimal.Decimal) []decimal.Decimal {
	increment := p.MinimumIncrement(price)
	if overrideIncrement.IsPositive() {
		increment = overrideIncrement
	}

	spread := spreadLow
	switch {
	case price.GreaterThanOrEqual(bandHigh):
		spread = spreadHigh
	case price.GreaterThanOrEqual(bandMid):
		spread = spreadMid
	}

	options := make([]decimal.Decimal, 0, len(spread))
	for _, mult := range spread {
		options = append(options, price.Add(increment.Mul(decimal.NewFromInt(mult))))
	}
	return options
}

// Validation is the result of a local bid legality check. The server
// re-validates independently and remains authoritative.
type Validation struct {
	Valid      bool
	Reason     string
	MinimumBid decimal.Decimal
}

// ValidateBid is the single local source of truth for "is this bid legal
// from the client's perspective": the amount must be positive and at least
// the next minimum bid over the current price.
func (p *Policy) ValidateBid(amount, currentPrice decimal.Decimal) Validation {
	minimum := p.NextMinimumBid(currentPrice)
	v := Validation{MinimumBid: minimum}
	switch {
	case !amount.IsPositive():
		v.Reason = "bid amount must be positive"
	case amount.LessThan(minimum):
		v.Reason = "bid must be at least " + minimum.StringFixed(2)
	default:
		v.Valid = true
	}
	return v
}
