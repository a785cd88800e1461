package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusLive      Status = "live"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is a terminal state. Terminal
// auctions are discarded and never resurrected.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// IsBiddable reports whether bids can be placed while in this status.
func (s Status) IsBiddable() bool {
	return s == StatusActive || s == StatusLive
}

// Mode represents the auction timing mode
type Mode string

const (
	// ModeNormal auctions may receive server-driven timer extensions when a
	// bid lands close to the end time.
	ModeNormal Mode = "normal"
	// ModeSuddenDeath auctions never have their end time extended by bids.
	ModeSuddenDeath Mode = "sudden_death"
)

// ProductInfo carries the joined product details for an auction. Lean push
// payloads typically omit it; the merge rule keeps the last known value.
type ProductInfo struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// BidderInfo carries the joined details of the current high bidder.
type BidderInfo struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
}

// Snapshot is the client's current best-known state of one auction resource.
// The reconciler is its only writer; everyone else reads copies.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	StreamID  uuid.UUID `json:"stream_id"`
	ProductID uuid.UUID `json:"product_id"`

	StartingBid         decimal.Decimal `json:"starting_bid"`
	CurrentBid          decimal.Decimal `json:"current_bid"`
	BidCount            int             `json:"bid_count"`
	MinimumBidIncrement decimal.Decimal `json:"minimum_bid_increment"`

	EndsAt          time.Time  `json:"ends_at"`
	Status          Status     `json:"status"`
	Mode            Mode       `json:"mode"`
	CurrentBidderID *uuid.UUID `json:"current_bidder_id,omitempty"`

	Product       *ProductInfo `json:"product,omitempty"`
	CurrentBidder *BidderInfo  `json:"current_bidder,omitempty"`
}

// Clone returns a deep copy of the snapshot. Readers get clones so the
// reconciler's copy is never mutated in place.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.CurrentBidderID != nil {
		id := *s.CurrentBidderID
		out.CurrentBidderID = &id
	}
	if s.Product != nil {
		p := *s.Product
		out.Product = &p
	}
	if s.CurrentBidder != nil {
		b := *s.CurrentBidder
		out.CurrentBidder = &b
	}
	return &out
}

// Terminal reports whether the snapshot has reached a terminal state, either
// by status or because its end time has already passed.
func (s *Snapshot) Terminal(now time.Time) bool {
	if s.Status.IsTerminal() {
		return true
	}
	return !s.EndsAt.IsZero() && !s.EndsAt.After(now)
}
