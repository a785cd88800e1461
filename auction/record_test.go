package auction_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveauction/auction"
)

func TestRecordUnmarshalCoalescesFieldForms(t *testing.T) {
	id := uuid.New()
	streamID := uuid.New()

	snake := []byte(`{
		"id": "` + id.String() + `",
		"stream_id": "` + streamID.String() + `",
		"starting_bid": 5,
		"current_bid": "12.50",
		"bid_count": 4,
		"ends_at": "2026-09-01T12:00:00Z",
		"status": "live"
	}`)
	camel := []byte(`{
		"id": "` + id.String() + `",
		"streamId": "` + streamID.String() + `",
		"startingBid": 5,
		"currentBid": "12.50",
		"bidCount": 4,
		"endsAt": "2026-09-01T12:00:00Z",
		"status": "live"
	}`)

	var a, b auction.Record
	require.NoError(t, json.Unmarshal(snake, &a))
	require.NoError(t, json.Unmarshal(camel, &b))

	for _, rec := range []auction.Record{a, b} {
		assert.Equal(t, id, rec.ID)
		require.NotNil(t, rec.StreamID)
		assert.Equal(t, streamID, *rec.StreamID)
		require.NotNil(t, rec.CurrentBid)
		assert.True(t, rec.CurrentBid.Equal(decimal.NewFromFloat(12.50)))
		require.NotNil(t, rec.BidCount)
		assert.Equal(t, 4, *rec.BidCount)
		require.NotNil(t, rec.Status)
		assert.Equal(t, auction.StatusLive, *rec.Status)
		assert.Nil(t, rec.Product)
	}
}

func TestRecordMissingIDRejectedWhole(t *testing.T) {
	var rec auction.Record
	err := json.Unmarshal([]byte(`{"current_bid": 10, "status": "live"}`), &rec)
	require.ErrorIs(t, err, auction.ErrMissingID)

	err = json.Unmarshal([]byte(`{"id": "00000000-0000-0000-0000-000000000000"}`), &rec)
	require.ErrorIs(t, err, auction.ErrMissingID)
}

func TestRecordTerminal(t *testing.T) {
	now := time.Now()
	ended := auction.StatusEnded
	live := auction.StatusLive
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&auction.Record{ID: uuid.New(), Status: &ended}).Terminal(now))
	assert.True(t, (&auction.Record{ID: uuid.New(), Status: &live, EndsAt: &past}).Terminal(now))
	assert.False(t, (&auction.Record{ID: uuid.New(), Status: &live, EndsAt: &future}).Terminal(now))
	assert.False(t, (&auction.Record{ID: uuid.New(), Status: &live}).Terminal(now))
}
