// auctionwatch attaches to one live stream and logs the reconciled auction
// state, connection health, and the currently legal bid amounts. It is the
// reference wiring of the auction core against the real collaborators.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/api"
	"github.com/mcdev12/liveauction/auction"
	"github.com/mcdev12/liveauction/bidding"
	"github.com/mcdev12/liveauction/connection"
	"github.com/mcdev12/liveauction/realtime"
	"github.com/mcdev12/liveauction/reconciler"
)

// envAuth reports the user from AUCTION_USER_ID, if set. Real clients plug
// their session store in here instead.
type envAuth struct {
	userID uuid.UUID
	ok     bool
}

func (a envAuth) CurrentUserID() (uuid.UUID, bool) {
	return a.userID, a.ok
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	streamID, err := uuid.Parse(cfg.StreamID)
	if err != nil {
		log.Fatal().Err(err).Msg("stream_id must be a UUID")
	}
	policy, err := buildPolicy(cfg.Tiers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid bid increment tier table")
	}

	apiClient := api.NewClient(cfg.API.BaseURL, api.WithToken(cfg.API.Token))

	natsCfg := realtime.DefaultNATSConfig()
	if cfg.NATS.URL != "" {
		natsCfg.URL = cfg.NATS.URL
	}
	if cfg.NATS.SubjectPrefix != "" {
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	}
	subscriber, err := realtime.NewNATSSubscriber(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect push channel")
	}
	defer subscriber.Close()

	header := http.Header{}
	if cfg.API.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	transport := realtime.NewWebsocketTransport(cfg.Websocket.URL, header)

	manager := connection.NewManager(transport, connection.DefaultConfig(), connection.Callbacks{
		OnStateChange: func(from, to connection.State) {
			log.Info().Str("from", string(from)).Str("to", string(to)).Msg("connection state")
		},
		OnQualityChange: func(q connection.Quality) {
			log.Info().Str("quality", string(q)).Msg("connection quality")
		},
		OnReconnectAttempt: func(attempt int, delay time.Duration) {
			log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("connection error")
		},
	})
	defer manager.Close()

	reconCfg := reconciler.DefaultConfig()
	if d := cfg.pollInterval(); d > 0 {
		reconCfg.PollInterval = d
	}
	recon := reconciler.New(streamID, apiClient, subscriber, reconCfg,
		reconciler.WithOnChange(func(s *auction.Snapshot) {
			if s == nil {
				log.Info().Msg("no active auction")
				return
			}
			log.Info().
				Str("auction_id", s.ID.String()).
				Str("status", string(s.Status)).
				Str("current_bid", s.CurrentBid.StringFixed(2)).
				Int("bid_count", s.BidCount).
				Time("ends_at", s.EndsAt).
				Msg("auction updated")
		}),
	)
	defer recon.Close()

	auth := envAuth{}
	if raw := os.Getenv("AUCTION_USER_ID"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			auth = envAuth{userID: id, ok: true}
		}
	}
	engine := bidding.NewEngine(recon, policy, apiClient, auth)

	manager.Connect()
	if err := recon.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start reconciler")
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if ok, reason := engine.CanBid(); !ok {
				log.Debug().Str("reason", reason).Msg("bidding unavailable")
				continue
			}
			log.Info().
				Str("minimum_bid", engine.MinimumBid().StringFixed(2)).
				Str("increment", engine.BidIncrement().StringFixed(2)).
				Msg("bidding available")
		case <-sigCh:
			log.Info().Msg("shutting down")
			return
		}
	}
}
