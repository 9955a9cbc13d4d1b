// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package main is the entry point for the Releasewatch server.
//
// Releasewatch polls the Spotify new-releases listing and notifies each
// subscriber, at most once per release and channel, when an artist they
// follow appears on a release.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, config.yaml, then environment (Koanf v2)
//  2. Store: Badger subscriber store and notification ledger
//  3. Events: watermill publisher (GoChannel, embedded NATS or NATS)
//  4. Catalog client and notification channels
//  5. Reconciler and interval scheduler
//  6. HTTP server (Chi)
//
// Long-running parts run under a suture supervisor tree.
//
// # Configuration
//
// Required:
//   - SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET
//   - SMTP_SERVER, FROM_EMAIL
//
// Optional channels:
//   - TELEGRAM_BOT_TOKEN enables chat delivery
//   - TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_PHONE_NUMBER enable SMS
//
// A .env file in the working directory is loaded first when present.
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the tree: the HTTP server drains in-flight
// requests, the scheduler waits for a running cycle, then the event
// publisher and the store are closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tomtom215/releasewatch/internal/app"
	"github.com/tomtom215/releasewatch/internal/config"
	"github.com/tomtom215/releasewatch/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Dur("interval", cfg.Scheduler.Interval).
		Msg("Starting Releasewatch")

	application, err := app.New(cfg, version, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logging.Error().Err(err).Msg("Error during shutdown")
		}
		logging.Info().Msg("Releasewatch stopped")
	}()

	tree, err := application.SupervisorTree(logging.NewSlogLogger())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
			}
		}
		stop()
		_ = application.Close()
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown signal received")
}
