// Package bidpolicy computes minimum legal bid increments from an ordered
// tier table. It is pure: no I/O, no clocks, no goroutines. Everything that
// gates a monetary action fails closed instead of panicking.
package bidpolicy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier maps one contiguous price band to its minimum bid increment. MaxPrice
// is nil for the open-ended top tier.
type Tier struct {
	MinPrice  decimal.Decimal
	MaxPrice  *decimal.Decimal
	Increment decimal.Decimal
}

// cent is the granularity at which adjacent tiers must meet.
var cent = decimal.NewFromFloat(0.01)

// ErrEmptyTiers is returned when a policy is built with no tiers at all.
var ErrEmptyTiers = errors.New("bid increment tier table is empty")

// Policy answers minimum-increment questions against an immutable tier
// table. The zero value is not usable; build one with NewPolicy or Default.
type Policy struct {
	tiers             []Tier
	smallestIncrement decimal.Decimal
}

// NewPolicy validates the tier table and returns a policy over it. The
// table must be ordered, start at zero, partition [0, inf) with adjacent
// tiers meeting at cent granularity, end in an open tier, and carry only
// positive increments.
func NewPolicy(tiers []Tier) (*Policy, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	smallest := tiers[0].Increment
	for _, t := range tiers[1:] {
		if t.Increment.LessThan(smallest) {
			smallest = t.Increment
		}
	}
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return &Policy{tiers: out, smallestIncrement: smallest}, nil
}

// Default returns the policy over the standard marketplace tier table.
func Default() *Policy {
	p, err := NewPolicy(DefaultTiers())
	if err != nil {
		// The default table is a compile-time constant; a validation failure
		// here is a programming error.
		panic(fmt.Sprintf("default tier table invalid: %v", err))
	}
	return p
}

// DefaultTiers returns the standard marketplace increment table.
func DefaultTiers() []Tier {
	d := func(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
	dp := func(f float64) *decimal.Decimal { v := d(f); return &v }
	return []Tier{
		{MinPrice: d(0), MaxPrice: dp(19.99), Increment: d(1)},
		{MinPrice: d(20), MaxPrice: dp(99.99), Increment: d(2)},
		{MinPrice: d(100), MaxPrice: dp(249.99), Increment: d(5)},
		{MinPrice: d(250), MaxPrice: dp(999.99), Increment: d(10)},
		{MinPrice: d(1000), MaxPrice: nil, Increment: d(25)},
	}
}

// ValidateTiers checks that tiers partition [0, inf) with no gaps or
// overlaps and that every increment is positive.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrEmptyTiers
	}
	if !tiers[0].MinPrice.IsZero() {
		return fmt.Errorf("first tier must start at 0, got %s", tiers[0].MinPrice)
	}
	for i, t := range tiers {
		if !t.Increment.IsPositive() {
			return fmt.Errorf("tier %d: increment must be positive, got %s", i, t.Increment)
		}
		last := i == len(tiers)-1
		if last {
			if t.MaxPrice != nil {
				return fmt.Errorf("tier %d: top tier must be open-ended", i)
			}
			continue
		}
		if t.MaxPrice == nil {
			return fmt.Errorf("tier %d: only the top tier may be open-ended", i)
		}
		if t.MaxPrice.LessThan(t.MinPrice) {
			return fmt.Errorf("tier %d: max price %s below min price %s", i, t.MaxPrice, t.MinPrice)
		}
		next := tiers[i+1]
		if !next.MinPrice.Equal(t.MaxPrice.Add(cent)) {
			return fmt.Errorf("tier %d: next tier starts at %s, want %s", i, next.MinPrice, t.MaxPrice.Add(cent))
		}
	}
	return nil
}

// MinimumIncrement returns the minimum legal increment at the given price.
// If the price matches no tier (a configuration bug), it fails closed by
// returning the smallest defined increment rather than panicking, because
// this result directly gates bid submission.
func (p *Policy) MinimumIncrement(price decimal.Decimal) decimal.Decimal {
	for _, t := range p.tiers {
		if price.LessThan(t.MinPrice) {
			continue
		}
		if t.MaxPrice == nil || price.LessThanOrEqual(*t.MaxPrice) {
			return t.Increment
		}
	}
	return p.smallestIncrement
}

// NextMinimumBid returns the lowest legal bid over the given price.
func (p *Policy) NextMinimumBid(price decimal.Decimal) decimal.Decimal {
	return price.Add(p.MinimumIncrement(price))
}
