package auction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveauction/auction"
)

func heldSnapshot() *auction.Snapshot {
	return &auction.Snapshot{
		ID:          uuid.New(),
		StreamID:    uuid.New(),
		StartingBid: decimal.NewFromInt(100),
		CurrentBid:  decimal.NewFromInt(120),
		BidCount:    6,
		EndsAt:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Status:      auction.StatusLive,
		Mode:        auction.ModeNormal,
		Product:     &auction.ProductInfo{ID: uuid.New(), Title: "Watch"},
	}
}

func TestMergeLeanPayloadKeepsRelationalFields(t *testing.T) {
	held := heldSnapshot()
	bid := decimal.NewFromInt(150)
	incoming := &auction.Record{ID: held.ID, CurrentBid: &bid}

	merged := auction.Merge(held, incoming)

	assert.True(t, merged.CurrentBid.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, merged.Product)
	assert.Equal(t, "Watch", merged.Product.Title)
	// The held snapshot itself is untouched.
	assert.True(t, held.CurrentBid.Equal(decimal.NewFromInt(120)))
}

func TestMergeIncomingScalarsWin(t *testing.T) {
	held := heldSnapshot()
	status := auction.StatusActive
	count := 9
	incoming := &auction.Record{ID: held.ID, Status: &status, BidCount: &count}

	merged := auction.Merge(held, incoming)

	assert.Equal(t, auction.StatusActive, merged.Status)
	assert.Equal(t, 9, merged.BidCount)
}

func TestMergeBidCountNeverDecreases(t *testing.T) {
	held := heldSnapshot()
	stale := 2
	incoming := &auction.Record{ID: held.ID, BidCount: &stale}

	merged := auction.Merge(held, incoming)
	assert.Equal(t, 6, merged.BidCount)
}

func TestMergeEndsAtOnlyMovesForward(t *testing.T) {
	held := heldSnapshot()

	earlier := held.EndsAt.Add(-time.Minute)
	merged := auction.Merge(held, &auction.Record{ID: held.ID, EndsAt: &earlier})
	assert.True(t, merged.EndsAt.Equal(held.EndsAt), "timer extensions never shorten an auction")

	later := held.EndsAt.Add(time.Minute)
	merged = auction.Merge(held, &auction.Record{ID: held.ID, EndsAt: &later})
	assert.True(t, merged.EndsAt.Equal(later))
}

func TestMergeCurrentBidFlooredByStartingBid(t *testing.T) {
	held := heldSnapshot()
	low := decimal.NewFromInt(50)
	merged := auction.Merge(held, &auction.Record{ID: held.ID, CurrentBid: &low})
	assert.True(t, merged.CurrentBid.Equal(held.StartingBid))
}

func TestMergeIntoNothingMaterializes(t *testing.T) {
	bid := decimal.NewFromInt(10)
	status := auction.StatusLive
	rec := &auction.Record{ID: uuid.New(), CurrentBid: &bid, Status: &status}

	merged := auction.Merge(nil, rec)
	require.NotNil(t, merged)
	assert.Equal(t, rec.ID, merged.ID)
	assert.Equal(t, auction.StatusLive, merged.Status)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	held := heldSnapshot()
	clone := held.Clone()
	clone.Product.Title = "Ring"
	clone.CurrentBid = decimal.NewFromInt(999)

	assert.Equal(t, "Watch", held.Product.Title)
	assert.True(t, held.CurrentBid.Equal(decimal.NewFromInt(120)))
	assert.Nil(t, (*auction.Snapshot)(nil).Clone())
}

func TestErrorKindClassification(t *testing.T) {
	err := auction.NewError(auction.KindBidRejected, "a higher bid was accepted first", nil)
	assert.Equal(t, auction.KindBidRejected, auction.KindOf(err))
	assert.True(t, auction.IsKind(err, auction.KindBidRejected))
	assert.False(t, auction.IsKind(err, auction.KindValidation))

	// Unclassified errors are treated as transport trouble.
	assert.Equal(t, auction.KindTransport, auction.KindOf(assert.AnError))
}
