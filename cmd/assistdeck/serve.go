package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"assistdeck/internal/chat"
	"assistdeck/internal/generator"
	"assistdeck/internal/httpapi"
	"assistdeck/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	log.Info().
		Str("db_driver", cfg.DB.Driver).
		Str("listen_addr", cfg.Server.ListenAddr).
		Int("providers", len(a.registry.Providers())).
		Int("assistants", len(a.assistants.List())).
		Msg("starting assistdeck")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	gen := generator.New(generator.Config{
		Sessions:   session.NewStore(rdb, cfg.Redis.SessionTTL),
		Registry:   a.registry,
		Assistants: a.assistants,
		Build:      a.build,
		Logger:     log.Logger.With().Str("component", "generator").Logger(),
		Metrics:    a.metrics,
	})
	chatSvc := chat.New(chat.Config{
		Registry:   a.registry,
		Assistants: a.assistants,
		Build:      a.build,
		Logger:     log.Logger.With().Str("component", "chat").Logger(),
	})

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Config{
		Registry:    a.registry,
		Assistants:  a.assistants,
		Chat:        chatSvc,
		Generator:   gen,
		Build:       a.build,
		Logger:      log.Logger.With().Str("component", "http").Logger(),
		HealthPath:  cfg.Server.HealthPath,
		MetricsPath: cfg.Server.MetricsPath,
		AllowOrigin: cfg.Server.AllowOrigin,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
	return runErr
}
