package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/auction"
)

// selectActive picks the single record that qualifies as the stream's
// current auction: status active or live AND an end time that is absent or
// still in the future. Zero matches means no active auction.
func selectActive(records []auction.Record, now time.Time) *auction.Record {
	for i := range records {
		rec := &records[i]
		if rec.Status == nil || !rec.Status.IsBiddable() {
			continue
		}
		if rec.EndsAt != nil && !rec.EndsAt.IsZero() && !rec.EndsAt.After(now) {
			continue
		}
		return rec
	}
	return nil
}

// pollOnce runs one poll-channel cycle: fetch the stream's auctions, select
// the qualifying record, and reconcile it into the held snapshot.
func (r *Reconciler) pollOnce(ctx context.Context) {
	r.setLoading(true)
	records, err := r.fetcher.AuctionsForStream(ctx, r.streamID)
	r.setLoading(false)
	if err != nil {
		// A failed poll surfaces but never clears a held snapshot.
		log.Debug().Err(err).Str("stream_id", r.streamID.String()).Msg("auction poll failed")
		r.setErr(err)
		return
	}
	r.setErr(nil)

	now := r.clock.Now()
	r.pruneTombstones(now)

	rec := selectActive(records, now)
	if rec == nil {
		// A successful poll with no qualifying auction: anything held has
		// either ended or disappeared server-side.
		if held := r.held(); held != nil {
			r.terminate(held.ID)
		}
		return
	}
	r.reconcile(ctx, rec)
}

// handleEvent runs one push-channel cycle.
func (r *Reconciler) handleEvent(ctx context.Context, ev auction.ChangeEvent) {
	if ev.Record == nil {
		return
	}
	if ev.Type == auction.ChangeDelete {
		r.terminate(ev.Record.ID)
		return
	}
	r.reconcile(ctx, ev.Record)
}

// reconcile applies the single merge rule to one incoming record,
// regardless of which channel it arrived on.
func (r *Reconciler) reconcile(ctx context.Context, rec *auction.Record) {
	now := r.clock.Now()

	// Termination is checked first, is irreversible, and is idempotent.
	if rec.Terminal(now) {
		r.terminate(rec.ID)
		return
	}
	if r.tombstoned(rec.ID) {
		// A stale channel reporting a terminated auction as live must not
		// resurrect it.
		log.Debug().Str("auction_id", rec.ID.String()).Msg("ignoring update for terminated auction")
		return
	}

	held := r.held()
	if held != nil && held.ID == rec.ID {
		// Same auction: merge field-by-field. Incoming scalars win; known
		// relational fields survive a lean payload.
		r.setSnapshot(auction.Merge(held, rec))
		return
	}

	// Different auction, or none held: the incoming shape may be lean, so
	// refetch the full record before adopting it for display.
	full, err := r.fetcher.AuctionByID(ctx, rec.ID)
	if err != nil {
		// Freshness conflicts resolve on a later cycle; never user-facing.
		log.Debug().Err(err).Str("auction_id", rec.ID.String()).Msg("full refetch before adoption failed")
		return
	}
	if full.Terminal(r.clock.Now()) {
		r.terminate(full.ID)
		return
	}
	r.setSnapshot(full.Snapshot())
}

// refreshByID force-fetches one auction and adopts it unconditionally. An
// explicit refresh overrides any tombstone.
func (r *Reconciler) refreshByID(ctx context.Context, id uuid.UUID) {
	full, err := r.fetcher.AuctionByID(ctx, id)
	if err != nil {
		r.setErr(err)
		return
	}
	r.setErr(nil)
	if full.Terminal(r.clock.Now()) {
		r.terminate(full.ID)
		return
	}
	delete(r.tombstones, id)
	r.setSnapshot(full.Snapshot())
}

// terminate drops the held snapshot if it matches the given id and records
// a tombstone so later stale updates cannot bring it back.
func (r *Reconciler) terminate(id uuid.UUID) {
	if _, seen := r.tombstones[id]; !seen {
		log.Info().Str("auction_id", id.String()).Msg("auction terminated")
	}
	r.tombstones[id] = r.clock.Now()

	held := r.held()
	if held != nil && held.ID == id {
		r.setSnapshot(nil)
	}
}

func (r *Reconciler) tombstoned(id uuid.UUID) bool {
	_, ok := r.tombstones[id]
	return ok
}

func (r *Reconciler) pruneTombstones(now time.Time) {
	for id, at := range r.tombstones {
		if now.Sub(at) > r.cfg.TombstoneTTL {
			delete(r.tombstones, id)
		}
	}
}

func (r *Reconciler) held() *auction.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Reconciler) setSnapshot(s *auction.Snapshot) {
	r.mu.Lock()
	r.snapshot = s
	r.mu.Unlock()
	if r.onChange != nil {
		r.onChange(s.Clone())
	}
}

func (r *Reconciler) setLoading(loading bool) {
	r.mu.Lock()
	r.loading = loading
	r.mu.Unlock()
}

func (r *Reconciler) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
