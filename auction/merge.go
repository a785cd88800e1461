package auction

// Merge folds an incoming record for the same auction into the held
// snapshot and returns the result. Incoming scalar fields win; relational
// fields already known (product, current bidder) survive a lean payload
// that omits them. Two server-side invariants are enforced during the fold:
// bid count never decreases and the end time only moves forward.
//
// This is the single merge authority for both update channels. Callers must
// not coalesce fields at the call site.
func Merge(held *Snapshot, incoming *Record) *Snapshot {
	if held == nil {
		return incoming.Snapshot()
	}
	out := held.Clone()
	applyRecord(out, incoming)
	return out
}

func applyRecord(s *Snapshot, r *Record) {
	if r.StreamID != nil {
		s.StreamID = *r.StreamID
	}
	if r.ProductID != nil {
		s.ProductID = *r.ProductID
	}
	if r.StartingBid != nil {
		s.StartingBid = *r.StartingBid
	}
	if r.CurrentBid != nil {
		s.CurrentBid = *r.CurrentBid
	}
	if r.BidCount != nil && *r.BidCount > s.BidCount {
		s.BidCount = *r.BidCount
	}
	if r.MinimumBidIncrement != nil {
		s.MinimumBidIncrement = *r.MinimumBidIncrement
	}
	if r.EndsAt != nil && (s.EndsAt.IsZero() || r.EndsAt.After(s.EndsAt)) {
		s.EndsAt = *r.EndsAt
	}
	if r.Status != nil {
		s.Status = *r.Status
	}
	if r.Mode != nil {
		s.Mode = *r.Mode
	}
	if r.CurrentBidderID != nil {
		id := *r.CurrentBidderID
		s.CurrentBidderID = &id
	}
	if r.Product != nil {
		p := *r.Product
		s.Product = &p
	}
	if r.CurrentBidder != nil {
		b := *r.CurrentBidder
		s.CurrentBidder = &b
	}
	// CurrentBid must never sit below StartingBid; lean payloads can carry
	// one without the other.
	if s.CurrentBid.LessThan(s.StartingBid) {
		s.CurrentBid = s.StartingBid
	}
}
