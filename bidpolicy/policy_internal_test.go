package bidpolicy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// A gapped table cannot be built through NewPolicy, but a configuration bug
// must still fail closed: prices matching no tier get the smallest defined
// increment instead of a panic.
func TestMinimumIncrementFailsClosedOnGap(t *testing.T) {
	ten := decimal.NewFromInt(10)
	thirty := decimal.NewFromInt(30)
	p := &Policy{
		tiers: []Tier{
			{MinPrice: decimal.Zero, MaxPrice: &ten, Increment: decimal.NewFromInt(1)},
			{MinPrice: thirty, MaxPrice: nil, Increment: decimal.NewFromInt(5)},
		},
		smallestIncrement: decimal.NewFromInt(1),
	}

	// 20 falls into the gap between the tiers.
	got := p.MinimumIncrement(decimal.NewFromInt(20))
	assert.True(t, got.Equal(decimal.NewFromInt(1)))
	assert.True(t, got.IsPositive())
}
