package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"assistdeck/internal/config"
	"assistdeck/internal/metrics"
	"assistdeck/internal/providers"
	"assistdeck/internal/providers/factory"
	"assistdeck/internal/secrets"
	"assistdeck/internal/state"
	"assistdeck/internal/storage"
)

// app holds what every command needs: config, persisted state and a way to
// build provider clients.
type app struct {
	cfg        *config.Config
	store      *storage.Store
	persister  *state.BlobPersister
	registry   *state.Registry
	assistants *state.Assistants
	metrics    *metrics.Metrics
	build      func(providers.Config) (providers.Provider, error)
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.Log)

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	keyring, err := secrets.NewKeyring(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init keyring: %w", err)
	}

	m := metrics.Global()
	persister := state.NewBlobPersister(store, keyring, log.Logger)
	registry, assistants, err := state.Open(ctx, persister, state.Options{
		Logger:  log.Logger,
		Metrics: m,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTP.ClientTimeout}
	opts := factory.Options{HTTPClient: httpClient, Logger: log.Logger, Metrics: m}

	return &app{
		cfg:        cfg,
		store:      store,
		persister:  persister,
		registry:   registry,
		assistants: assistants,
		metrics:    m,
		build: func(p providers.Config) (providers.Provider, error) {
			return factory.Build(p, opts)
		},
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close storage")
	}
}
