// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/api"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/github"
	"github.com/SuperSonnix71/github-invite-plus/internal/indexer"
	"github.com/SuperSonnix71/github-invite-plus/internal/invites"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/supervisor"
	"github.com/SuperSonnix71/github-invite-plus/internal/supervisor/services"
	"github.com/SuperSonnix71/github-invite-plus/internal/tokens"
	"github.com/SuperSonnix71/github-invite-plus/internal/webhooks"
	"github.com/SuperSonnix71/github-invite-plus/internal/worker"
)

const deliveryGCInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(cfg))
	logging.Info().Msg("Starting github-invite-plus with supervisor tree")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		File: logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	}
}

// run wires every component and blocks until a shutdown signal. Returning
// instead of exiting lets the deferred closes run.
//
//nolint:gocyclo // sequential setup
func run(cfg *config.Config) error {
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("meili_url", cfg.Search.URL).
		Str("github_api", cfg.GitHub.APIURL).
		Dur("invite_poll_interval", cfg.Invites.PollInterval()).
		Str("dedupe_store", cfg.Webhook.DedupeStore).
		Msg("Configuration loaded")
	warnInsecureSettings(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	// Deferred first so it runs last, after the tree has stopped every writer.
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// No worker is running yet, so every running job is an orphan.
	if _, err := worker.RecoverStuckJobs(ctx, db); err != nil {
		return fmt.Errorf("recover stuck jobs: %w", err)
	}

	cipher, err := config.NewCredentialEncryptorFromConfig(cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize token encryption: %w", err)
	}

	gh := github.NewClient(&cfg.GitHub, cfg.Server.RedirectURI())
	tok := tokens.NewManager(db, gh, cipher)

	searchClient := search.NewClient(&cfg.Search)
	if err := searchClient.Health(ctx); err != nil {
		logging.Warn().Err(err).Msg("Meilisearch is not reachable yet; indexing jobs will retry")
	} else {
		logging.Info().Msg("Connected to Meilisearch")
	}
	indexes := search.NewIndexes(searchClient, &cfg.Search)

	invitations := invites.NewService(db, gh, tok)
	reconciler := invites.NewReconciler(
		cfg.Invites.PollInterval(),
		cfg.Invites.Concurrency,
		db,
		invitations,
		worker.NewCleaner(db, cfg.Worker.JobRetention),
	)

	pipeline := indexer.NewPipeline(cfg.Indexer, tok, gh, indexes, db)
	scheduler := worker.NewScheduler(cfg.Worker, db, pipeline)
	jobs := worker.NewEnqueuer(db, cfg.Worker.MaxAttempts)

	deliveries, err := webhooks.NewTracker(cfg.Webhook.DedupeStore, cfg.Webhook.DedupePath, cfg.Webhook.DedupeMaxEntries, cfg.Webhook.DedupeTTL)
	if err != nil {
		return fmt.Errorf("initialize webhook delivery store: %w", err)
	}
	defer func() {
		if err := deliveries.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing webhook delivery store")
		}
	}()

	handler := api.NewHandler(cfg, api.Dependencies{
		Store:       db,
		Invitations: invitations,
		Jobs:        jobs,
		Search:      search.NewService(indexes),
		SearchLive:  searchClient,
		OAuth:       gh,
		Tokens:      tok,
		Reactor:     webhooks.NewReactor(db, indexes, jobs),
		Deliveries:  deliveries,
	})
	router := api.NewRouter(cfg, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if gc, ok := deliveries.(webhooks.GarbageCollector); ok {
		tree.AddDataService(services.NewPeriodicService("delivery-gc", deliveryGCInterval, func(context.Context) error {
			return gc.RunGC()
		}))
	}
	tree.AddBackgroundService(services.NewLifecycleService("worker-scheduler", scheduler))
	tree.AddBackgroundService(services.NewLifecycleService("invite-reconciler", reconciler))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	watchConfig()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = fmt.Errorf("supervisor tree: %w", err)
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return serveErr
}

func warnInsecureSettings(cfg *config.Config) {
	if cfg.Server.APIKey == "" {
		logging.Warn().Msg("API_KEY is not set: per-user routes are open to anyone who can reach this server")
	}
	if !cfg.WebhooksEnabled() {
		logging.Warn().Msg("WEBHOOK_SECRET is not set: webhook deliveries are refused with 503")
	}
	for _, origin := range cfg.Server.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS_ORIGINS contains '*': any website can call this API from a browser")
			break
		}
	}
}

// watchConfig applies log level changes from the config file without a
// restart. Everything else needs a restart.
func watchConfig() {
	path := config.FilePath()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		next, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config file change")
			return
		}
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
