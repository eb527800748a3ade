package main

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/subasta/go/clients/auction_api_client"
	"github.com/mcdev12/subasta/go/internal/auctions"
	"github.com/mcdev12/subasta/go/internal/config"
	"github.com/mcdev12/subasta/go/internal/countdown"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/mcdev12/subasta/go/internal/session"
	"github.com/mcdev12/subasta/go/internal/watch"
	"github.com/rs/zerolog/log"
)

// Services holds every component of a running client
type Services struct {
	API     *auction_api_client.Client
	Session *session.Manager
	Channel *realtime.Channel
	Store   *auctions.Store
	Watcher *watch.Watcher
}

func setupServices(cfg *config.Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	// REST client
	api := auction_api_client.NewClient(cfg.API.BaseURL)
	api.SetTimeout(cfg.API.Timeout)

	// Session, persisted on disk
	sessions := session.NewManager(api, session.NewFileStore(cfg.Session.Path))
	api.SetTokenSource(sessions.Token)
	api.SetUnauthorizedHandler(sessions.HandleUnauthorized)

	// Realtime channel
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	channel := realtime.NewChannel(transport, sessions.Token,
		realtime.WithClock(clock),
		realtime.WithBackoff(cfg.Realtime.BaseDelay, cfg.Realtime.MaxAttempts),
	)
	sessions.OnSignedOut(channel.Disconnect)

	// Store and watcher
	store := auctions.NewStore(api,
		auctions.WithClock(clock),
		auctions.WithBidder(func() string {
			user, _ := sessions.User()
			return user.Username
		}),
		auctions.WithRoleCheck(sessions.HasRole),
	)
	watcher := watch.NewWatcher(channel, store, clock, logTick)

	return &Services{
		API:     api,
		Session: sessions,
		Channel: channel,
		Store:   store,
		Watcher: watcher,
	}, nil
}

func newTransport(cfg *config.Config) (realtime.Transport, error) {
	switch cfg.Realtime.Transport {
	case config.TransportWebSocket:
		return realtime.NewWebSocketTransport(realtime.DefaultWebSocketConfig(cfg.Realtime.WebSocketURL)), nil
	case config.TransportNATS:
		natsConfig := realtime.DefaultNATSConfig()
		natsConfig.URL = cfg.Realtime.NATSURL
		if cfg.Realtime.SubjectPrefix != "" {
			natsConfig.SubjectPrefix = cfg.Realtime.SubjectPrefix
		}
		return realtime.NewNATSTransport(natsConfig), nil
	default:
		return nil, fmt.Errorf("%w: unknown realtime transport %q", config.ErrInvalidConfig, cfg.Realtime.Transport)
	}
}

func logTick(auctionID int64, remaining time.Duration) {
	log.Debug().
		Int64("auction_id", auctionID).
		Str("remaining", countdown.Format(remaining)).
		Msg("countdown")
}
