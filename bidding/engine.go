// Package bidding derives legal bid amounts from the reconciled snapshot,
// submits bid intents idempotently, and applies optimistic local updates
// until the next authoritative snapshot supersedes them.
package bidding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/liveauction/auction"
	"github.com/mcdev12/liveauction/bidpolicy"
)

// ErrSubmissionInFlight is returned when a bid is placed while another
// submission is still in flight. Re-entrant calls are ignored, not queued.
var ErrSubmissionInFlight = auction.NewError(auction.KindValidation, "a bid submission is already in flight", nil)

// overlay is the optimistic local state applied on top of the reconciled
// snapshot after an accepted bid, until the reconciler catches up.
type overlay struct {
	auctionID uuid.UUID
	bidderID  uuid.UUID
	amount    decimal.Decimal
	bidCount  int
	endsAt    time.Time // zero unless the server reported an extension
}

// superseded reports whether the authoritative snapshot has caught up with
// the optimistic state.
func (o *overlay) superseded(s *auction.Snapshot) bool {
	if s.ID != o.auctionID {
		return true
	}
	return s.BidCount >= o.bidCount || s.CurrentBid.GreaterThanOrEqual(o.amount)
}

// Engine is the bidding engine for one stream. It observes a snapshot
// source and never mutates the reconciler's state.
type Engine struct {
	source    SnapshotSource
	policy    *bidpolicy.Policy
	submitter Submitter
	auth      Authenticator

	mu         sync.Mutex
	inFlight   bool
	lastErr    error
	optimistic *overlay
}

// NewEngine builds a bidding engine over the given collaborators.
func NewEngine(source SnapshotSource, policy *bidpolicy.Policy, submitter Submitter, auth Authenticator) *Engine {
	return &Engine{
		source:    source,
		policy:    policy,
		submitter: submitter,
		auth:      auth,
	}
}

// View returns the snapshot the user should see: the reconciled snapshot
// with the optimistic overlay applied while it is still fresher than the
// authoritative state.
func (e *Engine) View() *auction.Snapshot {
	snap := e.source.Snapshot()
	if snap == nil {
		e.clearOverlay()
		return nil
	}

	e.mu.Lock()
	o := e.optimistic
	if o != nil && o.superseded(snap) {
		e.optimistic = nil
		o = nil
	}
	e.mu.Unlock()

	if o == nil {
		return snap
	}
	snap.CurrentBid = o.amount
	snap.BidCount = o.bidCount
	bidder := o.bidderID
	snap.CurrentBidderID = &bidder
	snap.CurrentBidder = nil
	if !o.endsAt.IsZero() && o.endsAt.After(snap.EndsAt) {
		snap.EndsAt = o.endsAt
	}
	return snap
}

// BidIncrement returns the minimum legal increment at the current price.
// The server-supplied increment is honored, floored by the local policy.
func (e *Engine) BidIncrement() decimal.Decimal {
	snap := e.View()
	if snap == nil {
		return e.policy.MinimumIncrement(decimal.Zero)
	}
	increment := e.policy.MinimumIncrement(snap.CurrentBid)
	if snap.MinimumBidIncrement.GreaterThan(increment) {
		increment = snap.MinimumBidIncrement
	}
	return increment
}

// MinimumBid returns the lowest legal bid right now.
func (e *Engine) MinimumBid() decimal.Decimal {
	snap := e.View()
	if snap == nil {
		return e.policy.NextMinimumBid(decimal.Zero)
	}
	return snap.CurrentBid.Add(e.BidIncrement())
}

// QuickBidOptions returns the fast-bid amounts for the current price.
func (e *Engine) QuickBidOptions() []decimal.Decimal {
	snap := e.View()
	if snap == nil {
		return nil
	}
	return e.policy.QuickBidOptions(snap.CurrentBid, snap.MinimumBidIncrement)
}

// CanBid reports whether a bid can be placed right now, with a
// human-readable reason when it cannot.
func (e *Engine) CanBid() (bool, string) {
	if _, ok := e.auth.CurrentUserID(); !ok {
		return false, "sign in to place a bid"
	}
	if e.View() == nil {
		return false, "no active auction"
	}
	e.mu.Lock()
	inFlight := e.inFlight
	e.mu.Unlock()
	if inFlight {
		return false, "bid in progress"
	}
	return true, ""
}

// LastError returns the most recent submission failure, cleared by the
// next accepted bid.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// PlaceBid submits a bid at exactly the current minimum.
func (e *Engine) PlaceBid(ctx context.Context) (*BidResult, error) {
	return e.submit(ctx, e.MinimumBid(), false)
}

// PlaceCustomBid submits a bid at a caller-chosen amount. Amounts below the
// minimum are rejected locally with a validation failure; no network call
// is made.
func (e *Engine) PlaceCustomBid(ctx context.Context, amount decimal.Decimal) (*BidResult, error) {
	snap := e.View()
	if snap != nil {
		if v := e.policy.ValidateBid(amount, snap.CurrentBid); !v.Valid {
			return nil, auction.NewError(auction.KindValidation, v.Reason, nil)
		}
		if minimum := e.MinimumBid(); amount.LessThan(minimum) {
			return nil, auction.NewError(auction.KindValidation, "bid must be at least "+minimum.StringFixed(2), nil)
		}
	}
	return e.submit(ctx, amount, false)
}

// PlaceMaxBid submits an auto-bid ceiling. The server bids incrementally up
// to the ceiling on the user's behalf as others bid.
func (e *Engine) PlaceMaxBid(ctx context.Context, ceiling decimal.Decimal) (*BidResult, error) {
	if minimum := e.MinimumBid(); ceiling.LessThan(minimum) {
		return nil, auction.NewError(auction.KindValidation, "max bid must be at least "+minimum.StringFixed(2), nil)
	}
	return e.submit(ctx, ceiling, true)
}

func (e *Engine) submit(ctx context.Context, amount decimal.Decimal, isMaxBid bool) (*BidResult, error) {
	userID, ok := e.auth.CurrentUserID()
	if !ok {
		return nil, auction.NewError(auction.KindAuthRequired, "sign in to place a bid", nil)
	}
	snap := e.View()
	if snap == nil {
		return nil, auction.NewError(auction.KindValidation, "no active auction", nil)
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	e.inFlight = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	intent := BidIntent{
		AuctionID:      snap.ID,
		Amount:         amount,
		IsMaxBid:       isMaxBid,
		IdempotencyKey: uuid.New(),
	}
	log.Debug().
		Str("auction_id", intent.AuctionID.String()).
		Str("amount", amount.StringFixed(2)).
		Bool("is_max_bid", isMaxBid).
		Str("idempotency_key", intent.IdempotencyKey.String()).
		Msg("submitting bid")

	result, err := e.submitter.SubmitBid(ctx, intent)
	if err != nil {
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		log.Warn().
			Err(err).
			Str("auction_id", intent.AuctionID.String()).
			Str("kind", string(auction.KindOf(err))).
			Msg("bid rejected")
		return nil, err
	}

	accepted := result.AcceptedAmount
	if accepted.IsZero() {
		accepted = amount
	}
	o := &overlay{
		auctionID: snap.ID,
		bidderID:  userID,
		amount:    accepted,
		bidCount:  snap.BidCount + 1,
	}
	if result.BidCount > o.bidCount {
		o.bidCount = result.BidCount
	}
	// Timer extensions are server-driven; sudden death auctions never get
	// one, so a reported extension is ignored for them.
	if result.TimerExtended && result.NewEndsAt != nil && snap.Mode != auction.ModeSuddenDeath {
		o.endsAt = *result.NewEndsAt
	}

	e.mu.Lock()
	e.lastErr = nil
	e.optimistic = o
	e.mu.Unlock()

	log.Info().
		Str("auction_id", intent.AuctionID.String()).
		Str("amount", accepted.StringFixed(2)).
		Bool("timer_extended", result.TimerExtended).
		Msg("bid accepted")
	return result, nil
}

func (e *Engine) clearOverlay() {
	e.mu.Lock()
	e.optimistic = nil
	e.mu.Unlock()
}
