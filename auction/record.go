package auction

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMissingID is returned when an incoming record carries no auction id.
// Such records are rejected whole rather than partially adopted.
var ErrMissingID = errors.New("auction record missing id")

// Record is the wire shape of one auction as reported by either update
// channel. Poll results are usually full rows with joined relations; push
// payloads are often lean and omit fields. Optional fields are pointers so
// "omitted" stays distinguishable from "zero".
//
// The two channels do not agree on field naming (camelCase vs snake_case),
// so Record owns normalization: UnmarshalJSON coalesces both forms into the
// canonical shape before anything compares or merges records.
type Record struct {
	ID        uuid.UUID
	StreamID  *uuid.UUID
	ProductID *uuid.UUID

	StartingBid         *decimal.Decimal
	CurrentBid          *decimal.Decimal
	BidCount            *int
	MinimumBidIncrement *decimal.Decimal

	EndsAt          *time.Time
	Status          *Status
	Mode            *Mode
	CurrentBidderID *uuid.UUID

	Product       *ProductInfo
	CurrentBidder *BidderInfo
}

// pick returns the first raw value present under any of the given keys.
func pick(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// UnmarshalJSON accepts both snake_case and camelCase field names and
// coalesces them into the canonical record shape.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("parse auction record: %w", err)
	}

	rawID, ok := pick(fields, "id", "auction_id", "auctionId")
	if !ok {
		return ErrMissingID
	}
	if err := json.Unmarshal(rawID, &r.ID); err != nil {
		return fmt.Errorf("parse auction id: %w", err)
	}
	if r.ID == uuid.Nil {
		return ErrMissingID
	}

	if err := unmarshalInto(fields, &r.StreamID, "stream_id", "streamId"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.ProductID, "product_id", "productId"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.StartingBid, "starting_bid", "startingBid"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.CurrentBid, "current_bid", "currentBid"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.BidCount, "bid_count", "bidCount"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.MinimumBidIncrement, "minimum_bid_increment", "minimumBidIncrement"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.EndsAt, "ends_at", "endsAt"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.Status, "status"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.Mode, "mode"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.CurrentBidderID, "current_bidder_id", "currentBidderId"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.Product, "product"); err != nil {
		return err
	}
	if err := unmarshalInto(fields, &r.CurrentBidder, "current_bidder", "currentBidder"); err != nil {
		return err
	}
	return nil
}

func unmarshalInto[T any](fields map[string]json.RawMessage, dst **T, keys ...string) error {
	raw, ok := pick(fields, keys...)
	if !ok {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse auction field %q: %w", keys[0], err)
	}
	*dst = v
	return nil
}

// Terminal reports whether the record describes an auction in a terminal
// state, either by status or an already-passed end time.
func (r *Record) Terminal(now time.Time) bool {
	if r.Status != nil && r.Status.IsTerminal() {
		return true
	}
	return r.EndsAt != nil && !r.EndsAt.IsZero() && !r.EndsAt.After(now)
}

// Snapshot materializes a snapshot from a full record. Missing optional
// fields become zero values; callers that need the richer shape should
// refetch by id first.
func (r *Record) Snapshot() *Snapshot {
	s := &Snapshot{
		ID:     r.ID,
		Status: StatusScheduled,
		Mode:   ModeNormal,
	}
	applyRecord(s, r)
	return s
}

// ChangeType identifies the kind of push change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is one push-channel notification about an auction row. The
// record may be partial; delete events may carry nothing but the id.
type ChangeEvent struct {
	Type   ChangeType `json:"type"`
	Record *Record    `json:"record,omitempty"`
}
