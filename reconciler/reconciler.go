// Package reconciler merges a polled snapshot stream and a push-event
// stream of one logical auction resource into a single canonical,
// monotonically-fresh snapshot per stream.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/auction"
)

// Fetcher is the HTTP collaborator the reconciler polls.
type Fetcher interface {
	AuctionsForStream(ctx context.Context, streamID uuid.UUID) ([]auction.Record, error)
	AuctionByID(ctx context.Context, id uuid.UUID) (*auction.Record, error)
}

// Subscription is a live push-channel subscription. Unsubscribe must be
// called on every exit path of the owning component and must be safe to
// call more than once.
type Subscription interface {
	Unsubscribe() error
}

// Subscriber is the realtime collaborator delivering auction change events
// scoped to one stream. Delivered records may be partial.
type Subscriber interface {
	SubscribeAuctionChanges(streamID uuid.UUID, handler func(auction.ChangeEvent)) (Subscription, error)
}

// Config holds reconciler tunables.
type Config struct {
	// PollInterval is how often the poll channel refetches the stream's
	// auctions.
	PollInterval time.Duration
	// TombstoneTTL is how long a terminated auction id is remembered so a
	// stale poll cannot resurrect it.
	TombstoneTTL time.Duration
}

// DefaultConfig returns the default reconciler tunables.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		TombstoneTTL: 5 * time.Minute,
	}
}

// Reconciler keeps the canonical snapshot for one stream. It is the only
// writer of that snapshot; readers receive copies.
type Reconciler struct {
	streamID   uuid.UUID
	fetcher    Fetcher
	subscriber Subscriber
	cfg        Config
	clock      clockwork.Clock
	onChange   func(*auction.Snapshot)

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	eventCh   chan auction.ChangeEvent
	refetchCh chan struct{}
	refreshCh chan uuid.UUID

	mu       sync.RWMutex
	snapshot *auction.Snapshot
	loading  bool
	lastErr  error

	// Owned exclusively by the run goroutine.
	subscription Subscription
	tombstones   map[uuid.UUID]time.Time
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock swaps the reconciler's clock. Tests use a clockwork fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

// WithOnChange registers a callback invoked with a copy of the snapshot
// after every accepted change, including termination (nil snapshot). The
// callback runs on the reconciler's goroutine and must return quickly.
func WithOnChange(fn func(*auction.Snapshot)) Option {
	return func(r *Reconciler) {
		r.onChange = fn
	}
}

// New builds a reconciler for one stream. Nothing runs until Start.
func New(streamID uuid.UUID, fetcher Fetcher, subscriber Subscriber, cfg Config, opts ...Option) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		streamID:   streamID,
		fetcher:    fetcher,
		subscriber: subscriber,
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		eventCh:    make(chan auction.ChangeEvent, 64),
		refetchCh:  make(chan struct{}, 1),
		refreshCh:  make(chan uuid.UUID, 4),
		tombstones: make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the push channel and begins polling. It is safe to
// call once; Close releases everything Start acquired.
func (r *Reconciler) Start() error {
	var err error
	r.startOnce.Do(func() {
		var sub Subscription
		sub, err = r.subscriber.SubscribeAuctionChanges(r.streamID, r.enqueueEvent)
		if err != nil {
			err = fmt.Errorf("subscribe to auction changes: %w", err)
			return
		}
		r.subscription = sub
		go r.run()
		log.Info().Str("stream_id", r.streamID.String()).Msg("auction reconciler started")
	})
	return err
}

// Close cancels the poll timer, unsubscribes the push channel, and stops
// the run goroutine. Idempotent.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		if r.subscription != nil {
			<-r.done
			if err := r.subscription.Unsubscribe(); err != nil {
				log.Debug().Err(err).Msg("unsubscribe failed")
			}
		}
	})
}

// Snapshot returns a copy of the current snapshot, or nil when no auction
// is active. Callers must treat the copy as theirs; the reconciler never
// mutates it afterwards.
func (r *Reconciler) Snapshot() *auction.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Clone()
}

// Loading reports whether a poll is currently in flight.
func (r *Reconciler) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Err returns the most recent poll error. A poll error never clears an
// already-held snapshot; stale-but-present beats empty.
func (r *Reconciler) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Refetch forces a poll now instead of waiting for the next interval tick.
func (r *Reconciler) Refetch() {
	select {
	case r.refetchCh <- struct{}{}:
	default:
	}
}

// RefreshAuction forces a full fetch of one auction and adopts the result
// unconditionally, clearing any tombstone for it.
func (r *Reconciler) RefreshAuction(id uuid.UUID) {
	select {
	case r.refreshCh <- id:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) enqueueEvent(ev auction.ChangeEvent) {
	select {
	case r.eventCh <- ev:
	default:
		// The poll channel is the safety net for anything dropped here.
		log.Warn().Str("stream_id", r.streamID.String()).Msg("event buffer full, dropping change event")
	}
}

func (r *Reconciler) run() {
	defer close(r.done)
	ticker := r.clock.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.pollOnce(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.Chan():
			r.pollOnce(r.ctx)
		case <-r.refetchCh:
			r.pollOnce(r.ctx)
		case id := <-r.refreshCh:
			r.refreshByID(r.ctx, id)
		case ev := <-r.eventCh:
			r.handleEvent(r.ctx, ev)
		}
	}
}
