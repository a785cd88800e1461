package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveauction/api"
	"github.com/mcdev12/liveauction/auction"
	"github.com/mcdev12/liveauction/bidding"
)

func TestAuctionsForStreamDecodesSnakeCase(t *testing.T) {
	streamID := uuid.New()
	auctionID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/streams/"+streamID.String()+"/auctions", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": "` + auctionID.String() + `",
			"stream_id": "` + streamID.String() + `",
			"current_bid": 42.50,
			"bid_count": 7,
			"status": "live"
		}]`))
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL, api.WithToken("token-123"))
	records, err := c.AuctionsForStream(context.Background(), streamID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, auctionID, records[0].ID)
	require.NotNil(t, records[0].CurrentBid)
	assert.True(t, records[0].CurrentBid.Equal(decimal.NewFromFloat(42.50)))
}

func TestAuctionByIDReturnsFullRecord(t *testing.T) {
	auctionID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auctions/"+auctionID.String(), r.URL.Path)
		w.Write([]byte(`{
			"id": "` + auctionID.String() + `",
			"current_bid": 100,
			"status": "live",
			"product": {"id": "` + uuid.NewString() + `", "title": "Watch"}
		}`))
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL)
	rec, err := c.AuctionByID(context.Background(), auctionID)
	require.NoError(t, err)
	require.NotNil(t, rec.Product)
	assert.Equal(t, "Watch", rec.Product.Title)
}

func TestSubmitBidCarriesIdempotencyKey(t *testing.T) {
	auctionID := uuid.New()
	key := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auctions/"+auctionID.String()+"/bids", r.URL.Path)

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "idempotency_key")
		assert.Contains(t, body, "amount")
		assert.Contains(t, body, "is_max_bid")

		w.Write([]byte(`{"accepted_amount": "22.00", "bid_count": 8, "timer_extended": false}`))
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL)
	result, err := c.SubmitBid(context.Background(), bidding.BidIntent{
		AuctionID:      auctionID,
		Amount:         decimal.NewFromFloat(22.00),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.True(t, result.AcceptedAmount.Equal(decimal.NewFromFloat(22.00)))
	assert.Equal(t, 8, result.BidCount)
}

func TestStatusCodeClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   auction.ErrorKind
	}{
		{http.StatusUnauthorized, auction.KindAuthRequired},
		{http.StatusForbidden, auction.KindAuthRequired},
		{http.StatusNotFound, auction.KindTerminalAuction},
		{http.StatusGone, auction.KindTerminalAuction},
		{http.StatusConflict, auction.KindBidRejected},
		{http.StatusUnprocessableEntity, auction.KindBidRejected},
		{http.StatusInternalServerError, auction.KindTransport},
		{http.StatusBadGateway, auction.KindTransport},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"message": "nope"}`))
		}))

		c := api.NewClient(srv.URL)
		_, err := c.AuctionByID(context.Background(), uuid.New())
		require.Error(t, err, "status %d", tt.status)
		assert.True(t, auction.IsKind(err, tt.kind), "status %d should map to %s, got %s", tt.status, tt.kind, auction.KindOf(err))
		srv.Close()
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := api.NewClient(srv.URL)
	_, err := c.AuctionByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, auction.IsKind(err, auction.KindTransport))
}
