package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/bosswatch/go/clients/worldboss_client"
	"github.com/mcdev12/bosswatch/go/internal/dbconfig"
	"github.com/mcdev12/bosswatch/go/internal/session"
	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/gateway"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/history"
	historydb "github.com/mcdev12/bosswatch/go/internal/worldboss/history/db"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/publisher"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Engine  *worldboss.Engine
	Gateway *gateway.Service

	// Optional sinks, nil when disabled
	Events  *publisher.Async
	History *publisher.Async

	closers []func() error
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Credentials → client → engine → gateway and sinks
	store := setupCredentialStore(config)

	client := worldboss_client.NewWorldBossClient(config.API.BaseURL, config.API.StatusPath, store)
	client.SetCredentials(store, config.API.RefreshPath)
	client.SetTimeout(config.API.Timeout)

	services := &Services{}
	var listeners []worldboss.Listener

	if config.NATS.Enabled {
		jsCfg := publisher.DefaultJetStreamConfig()
		jsCfg.URL = config.NATS.URL
		jsCfg.StreamName = config.NATS.StreamName
		jsCfg.SubjectPrefix = config.NATS.SubjectPrefix

		js, err := publisher.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.closers = append(services.closers, js.Close)
		services.Events = publisher.NewAsync("jetstream", js, 256)
		listeners = append(listeners, services.Events)
	}

	if config.History.Enabled {
		database, err := dbconfig.NewConfigFromEnv().Open(ctx)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		services.closers = append(services.closers, database.Close)
		repo := setupHistory(database)
		logLastWindow(ctx, repo)
		services.History = publisher.NewAsync("history", repo, 256)
		listeners = append(listeners, services.History)
	}

	opts := []worldboss.Option{
		worldboss.WithListener(worldboss.ListenerFunc(func(t events.Transition) {
			services.Gateway.OnTransition(t)
		})),
	}
	for _, l := range listeners {
		opts = append(opts, worldboss.WithListener(l))
	}

	services.Engine = worldboss.New(client, config.Engine, opts...)
	services.Gateway = gateway.NewService(services.Engine, gateway.DefaultConnectionConfig())

	client.OnSessionExpired(func() {
		log.Warn().Msg("session expired, credentials cleared")
		services.Engine.ReportSessionExpired()
	})

	return services, nil
}

func setupCredentialStore(config *Config) session.Store {
	if path := config.Session.CredentialsFile; path != "" {
		store := session.NewFileStore(path)
		if config.Session.Access != "" || config.Session.Refresh != "" {
			if err := store.Save(session.Credentials{
				Access:  config.Session.Access,
				Refresh: config.Session.Refresh,
			}); err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to seed credentials file")
			}
		}
		log.Info().Str("path", path).Msg("using file credential store")
		return store
	}

	log.Info().Msg("using in-memory credential store")
	return session.NewMemoryStore(session.Credentials{
		Access:  config.Session.Access,
		Refresh: config.Session.Refresh,
	})
}

type windowLookup interface {
	LatestWindow(ctx context.Context) (*worldboss.EventWindow, error)
}

// logLastWindow reports the last window recorded by an earlier run. Lookup
// failures are logged and never stop startup.
func logLastWindow(ctx context.Context, repo windowLookup) *worldboss.EventWindow {
	window, err := repo.LatestWindow(ctx)
	switch {
	case errors.Is(err, history.ErrNoWindow):
		log.Info().Msg("no event window recorded yet")
		return nil
	case err != nil:
		log.Warn().Err(err).Msg("failed to read last recorded window")
		return nil
	}

	log.Info().
		Int64("start_time", window.Start).
		Int64("end_time", window.End).
		Msg("last recorded event window")
	return window
}

func setupHistory(database *sql.DB) *history.Repository {
	queries := historydb.New(database)
	return history.NewRepository(queries)
}

// Start runs the engine and every background worker until ctx is canceled.
// It returns once all of them have stopped.
func (s *Services) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(s.Gateway.Start)
	if s.Events != nil {
		run(s.Events.Start)
	}
	if s.History != nil {
		run(s.History.Start)
	}

	err := s.Engine.Run(ctx)
	wg.Wait()
	return err
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}
