package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/config"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/gateway"
	"github.com/mcdev12/fieldofplay/go/internal/relay"
	"github.com/mcdev12/fieldofplay/go/internal/roster"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Store       roster.Store
	Roster      *roster.App
	Competition *fop.Competition
	Gateway     *gateway.Service
	JetStream   *relay.JetStream
	Relay       *relay.Relay

	closeStore func() error
}

func setupServices(ctx context.Context, cfg config.Server, competition *config.Competition) (*Services, error) {
	// Storage → roster → competition → gateway and relay
	clk := clockwork.NewRealClock()

	store, closeStore, err := roster.Open(ctx, cfg.DB, clk)
	if err != nil {
		return nil, err
	}
	s := &Services{Store: store, closeStore: closeStore}

	s.Roster = roster.NewApp(store)
	if err := seedGroups(ctx, s.Roster, competition); err != nil {
		s.Close()
		return nil, err
	}

	s.Competition, err = fop.NewCompetition(competition.Name, competition.Platforms, competition.FieldOfPlayConfig(), store, clk)
	if err != nil {
		s.Close()
		return nil, err
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.AllowedOrigins = cfg.AllowedOrigins
	s.Gateway = gateway.NewService(gatewayConfig, s.Competition)

	if cfg.NATSURL != "" {
		jsConfig := relay.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATSURL
		jsConfig.StreamName = cfg.NATSStream
		s.JetStream, err = relay.NewJetStream(ctx, jsConfig)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to set up relay: %w", err)
		}
		s.Relay = relay.New(s.Competition, s.JetStream, jsConfig)
	}
	return s, nil
}

// seedGroups imports the groups of the competition file that are not stored yet.
func seedGroups(ctx context.Context, app *roster.App, competition *config.Competition) error {
	for _, g := range competition.SeedGroups() {
		_, err := app.FindGroup(ctx, g.Platform, g.Name)
		if err == nil {
			log.Debug().Str("group", g.Name).Str("platform", g.Platform).Msg("group already stored")
			continue
		}
		if !errors.Is(err, roster.ErrGroupNotFound) {
			return err
		}
		if err := app.ImportGroup(ctx, g); err != nil {
			return fmt.Errorf("failed to import group %s: %w", g.Name, err)
		}
	}
	return nil
}

// Start runs the platforms and the relay. The returned channel is closed
// once they have all stopped.
func (s *Services) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	relayDone := make(chan struct{})

	go func() {
		defer close(relayDone)
		if s.Relay == nil {
			return
		}
		if err := s.Relay.Serve(ctx, s.JetStream); err != nil {
			log.Error().Err(err).Msg("relay failed")
		}
	}()

	go func() {
		defer close(done)
		if err := s.Competition.Run(ctx); err != nil {
			log.Error().Err(err).Msg("competition stopped with errors")
		}
		<-relayDone
	}()
	return done
}

func (s *Services) Close() {
	if s.JetStream != nil {
		if err := s.JetStream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}
