package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/auction"
	"github.com/mcdev12/liveauction/reconciler"
)

// NATSConfig holds configuration for the push-channel subscriber.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // change events arrive on "<prefix>.<stream_id>"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default subscriber configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auctions.changes",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSSubscriber delivers auction change events over NATS. It implements
// reconciler.Subscriber. Delivery is at-most-once from the client's point
// of view; the reconciler's poll channel is the safety net.
type NATSSubscriber struct {
	nc  *nats.Conn
	cfg NATSConfig
}

var _ reconciler.Subscriber = (*NATSSubscriber)(nil)

// NewNATSSubscriber connects to NATS with automatic transport-level
// reconnection and returns a subscriber.
func NewNATSSubscriber(cfg NATSConfig) (*NATSSubscriber, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSSubscriber{nc: nc, cfg: cfg}, nil
}

// SubscribeAuctionChanges subscribes to change events for one stream. The
// handler runs on the NATS delivery goroutine.
func (s *NATSSubscriber) SubscribeAuctionChanges(streamID uuid.UUID, handler func(auction.ChangeEvent)) (reconciler.Subscription, error) {
	subject := fmt.Sprintf("%s.%s", s.cfg.SubjectPrefix, streamID)
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev auction.ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			// Records without an id are rejected whole rather than
			// partially adopted.
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed change event")
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	log.Debug().Str("subject", subject).Msg("subscribed to auction changes")
	return &natsSubscription{sub: sub}, nil
}

// Close drains the connection and releases it.
func (s *NATSSubscriber) Close() {
	if err := s.nc.Drain(); err != nil {
		log.Debug().Err(err).Msg("NATS drain failed")
	}
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (n *natsSubscription) Unsubscribe() error {
	var err error
	n.once.Do(func() {
		err = n.sub.Unsubscribe()
	})
	return err
}
