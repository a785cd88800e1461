package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/liveauction/auction"
)

// BidIntent is one submission attempt. The idempotency key is unique per
// attempt; intents are never retried automatically, so a resubmission is a
// new intent with a new key.
type BidIntent struct {
	AuctionID      uuid.UUID       `json:"auction_id"`
	Amount         decimal.Decimal `json:"amount"`
	IsMaxBid       bool            `json:"is_max_bid"`
	IdempotencyKey uuid.UUID       `json:"idempotency_key"`
}

// BidResult is the server's answer to an accepted bid.
type BidResult struct {
	AcceptedAmount decimal.Decimal `json:"accepted_amount"`
	BidCount       int             `json:"bid_count"`
	TimerExtended  bool            `json:"timer_extended"`
	NewEndsAt      *time.Time      `json:"new_ends_at,omitempty"`
}

// Submitter is the HTTP collaborator that places bids. Failures must be
// classified (*auction.Error) so the engine can route them.
type Submitter interface {
	SubmitBid(ctx context.Context, intent BidIntent) (*BidResult, error)
}

// SnapshotSource is where the engine reads the reconciled auction state.
// Implemented by reconciler.Reconciler.
type SnapshotSource interface {
	Snapshot() *auction.Snapshot
}

// Authenticator reports the signed-in user, if any. Unauthenticated bids
// never reach the network.
type Authenticator interface {
	CurrentUserID() (uuid.UUID, bool)
}
