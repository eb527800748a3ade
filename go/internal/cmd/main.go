package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/subasta/go/internal/auctions"
	"github.com/mcdev12/subasta/go/internal/config"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	configPath string
	email      string
	password   string
	auctionID  int64
	category   string
	search     string
	logout     bool
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv(config.ConfigPathEnv), "path to a YAML config file")
	flag.StringVar(&opts.email, "email", os.Getenv("SUBASTA_EMAIL"), "sign in with this email")
	flag.StringVar(&opts.password, "password", os.Getenv("SUBASTA_PASSWORD"), "password for -email")
	flag.Int64Var(&opts.auctionID, "auction", 0, "auction to watch")
	flag.StringVar(&opts.category, "category", "", "category filter for the auction list")
	flag.StringVar(&opts.search, "search", "", "search term for the auction list")
	flag.BoolVar(&opts.logout, "logout", false, "sign out and exit")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatal().Err(err).Msg("subasta stopped")
	}
	log.Info().Msg("subasta shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	services, err := setupServices(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}

	if err := services.Session.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore session")
	}

	if opts.logout {
		services.Session.Logout(ctx)
		log.Info().Msg("signed out")
		return nil
	}

	if opts.email != "" {
		user, err := services.Session.Login(ctx, opts.email, opts.password)
		if err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}
		log.Info().Str("user", user.DisplayName()).Str("role", string(user.Role)).Msg("signed in")
	}
	if !services.Session.IsAuthenticated() {
		return errors.New("not signed in: pass -email and -password")
	}

	// Log connection status transitions
	services.Channel.Subscribe(realtime.KindConnectionStatus, func(ev realtime.Event) {
		log.Info().Str("status", string(ev.Status)).Msg("realtime connection")
	})

	if err := services.Channel.Connect(ctx); err != nil {
		// The REST side still works without push events
		log.Error().Err(err).Msg("realtime channel unavailable")
	}
	defer services.Channel.Disconnect()

	go services.Store.Run(ctx)

	filter := auctions.Filter{Category: opts.category, SearchTerm: opts.search}
	if err := services.Store.LoadList(ctx, filter); err != nil {
		log.Warn().Err(err).Msg("failed to load auction list")
	} else {
		log.Info().Int("count", len(services.Store.Snapshot().List.Auctions)).Msg("auction list loaded")
	}

	if opts.auctionID > 0 {
		release, err := services.Watcher.Focus(ctx, opts.auctionID)
		if err != nil {
			return fmt.Errorf("failed to watch auction %d: %w", opts.auctionID, err)
		}
		defer release()
		logFocused(services.Store.Snapshot())
		unsubscribe := services.Store.Subscribe(logFocused)
		defer unsubscribe()
	}

	if cfg.LocalAPI.Addr != "" {
		return serve(ctx, setupServer(cfg.LocalAPI.Addr, services))
	}

	<-ctx.Done()
	return nil
}

func logFocused(snap auctions.Snapshot) {
	a := snap.Focused.Auction
	if a == nil {
		return
	}
	log.Info().
		Int64("auction_id", a.ID).
		Str("state", string(a.State)).
		Float64("current_price", a.CurrentPrice).
		Int("bids", len(snap.Focused.Bids)).
		Time("ends_at", a.EndsAt.Time).
		Msg("auction updated")
}
