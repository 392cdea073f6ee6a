// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tomtom215/pagesight/docs" // generated swagger docs
	"github.com/tomtom215/pagesight/internal/api"
	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/eventprocessor"
	"github.com/tomtom215/pagesight/internal/fields"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/supervisor"
	"github.com/tomtom215/pagesight/internal/supervisor/services"
	"github.com/tomtom215/pagesight/internal/sync"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Pagesight exited with error")
		os.Exit(1)
	}
}

//nolint:gocyclo // sequential wiring of every component
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("database_driver", cfg.Database.Driver).
		Str("queue_transport", cfg.Queue.Transport).
		Msg("Starting Pagesight")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokenEncryptor(cfg.Tokens.EncryptionKey)
	if err != nil {
		return fmt.Errorf("token encryption: %w", err)
	}
	if !tokens.IsEnabled() {
		logging.Warn().Msg("TOKEN_ENCRYPTION_KEY not set, access tokens are stored in plaintext")
	}

	store, err := openStore(ctx, &cfg.Database, tokens)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	if !cfg.Facebook.HasAppCredentials() {
		logging.Warn().Msg("FACEBOOK_APP_ID or FACEBOOK_APP_SECRET not set, token exchange is disabled")
	}

	var graphAPI sync.GraphAPI = sync.NewGraphClient(&cfg.Facebook, fields.Default())
	var breaker api.BreakerState
	if cfg.Facebook.CircuitBreaker {
		cb := sync.NewCircuitBreakerClient(graphAPI)
		graphAPI = cb
		breaker = cb
	}

	tokenManager := sync.NewTokenManager(store, graphAPI, &cfg.Tokens)
	syncManager := sync.NewManager(store, graphAPI, tokenManager, cfg)

	queue, err := eventprocessor.New(ctx, cfg, syncManager)
	if err != nil {
		return fmt.Errorf("sync queue: %w", err)
	}
	syncManager.SetEnqueuer(queue)

	verifier, err := auth.NewJWTVerifier(&cfg.Security)
	if err != nil {
		_ = queue.Close()
		return fmt.Errorf("jwt verifier: %w", err)
	}

	handler := api.NewHandler(api.Dependencies{
		Sync:            syncManager,
		Tokens:          tokenManager,
		Queue:           queue,
		Store:           store,
		Breaker:         breaker,
		DatabaseBackend: cfg.Database.Driver,
		Version:         version,
	})
	syncManager.SetOnSyncCompleted(handler.OnSyncCompleted)

	router := api.NewRouter(
		handler,
		auth.NewMiddleware(verifier),
		api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Security)),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.NewTreeConfig(&cfg.Supervisor))
	if err != nil {
		_ = queue.Close()
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if cp, ok := store.(services.Checkpointer); ok {
		tree.AddDataService(services.NewCheckpointService(cp, cfg.Database.CheckpointInterval))
	}

	tree.AddMessagingService(services.NewQueueService(queue))
	if cfg.Sync.SchedulerEnabled {
		tree.AddMessagingService(services.NewSyncService(syncManager))
		logging.Info().Dur("interval", cfg.Sync.SchedulerInterval).Msg("Sync scheduler enabled")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Pagesight stopped")
	return nil
}
