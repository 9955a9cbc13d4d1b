// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package app assembles the Releasewatch components from a loaded
// configuration. The server and the operator CLI share it.
//
// Components are built in dependency order:
//
//  1. Store: Badger subscriber store and notification ledger
//  2. Events: watermill publisher (in-process, embedded NATS or external NATS)
//  3. Catalog: Spotify client with token cache, retries and circuit breaker
//  4. Channels: email always, chat and SMS when their credentials are set
//  5. Reconciler and scheduler
//
// HTTP and the supervisor tree are only built on request.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/api"
	"github.com/tomtom215/releasewatch/internal/auth"
	"github.com/tomtom215/releasewatch/internal/catalog"
	"github.com/tomtom215/releasewatch/internal/config"
	"github.com/tomtom215/releasewatch/internal/delivery"
	"github.com/tomtom215/releasewatch/internal/events"
	"github.com/tomtom215/releasewatch/internal/reconcile"
	"github.com/tomtom215/releasewatch/internal/store"
	"github.com/tomtom215/releasewatch/internal/supervisor"
	"github.com/tomtom215/releasewatch/internal/supervisor/services"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Version string

	DB         *store.DB
	Events     *events.Publisher
	Catalog    *catalog.Client
	Channels   *delivery.Registry
	Reconciler *reconcile.Reconciler
	Scheduler  *reconcile.Scheduler

	logger zerolog.Logger
}

// New builds every component. On failure the components opened so far are
// closed before returning.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg *config.Config, version string, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	a := &App{Config: cfg, Version: version, logger: logger}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	var err error
	a.DB, err = OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Events, err = events.Open(events.Config{
		Enabled:       cfg.Events.Enabled,
		NATSURL:       cfg.Events.NATSURL,
		Embedded:      cfg.Events.Embedded,
		EmbeddedHost:  cfg.Events.EmbeddedHost,
		EmbeddedPort:  cfg.Events.EmbeddedPort,
		SubjectPrefix: cfg.Events.SubjectPrefix,
		MaxReconnects: -1,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	a.Catalog, err = NewCatalog(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	a.Channels, err = BuildChannels(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	a.Reconciler, err = reconcile.New(reconcile.Deps{
		Subscribers: a.DB.Subscribers(),
		Releases:    a.Catalog,
		Ledger:      a.DB.Ledger(),
		Channels:    a.Channels,
		Events:      a.Events,
	}, reconcile.Config{DispatchTimeout: cfg.Scheduler.DispatchTimeout}, logger)
	if err != nil {
		return nil, err
	}

	a.Scheduler = reconcile.NewScheduler(a.Reconciler, logger, reconcile.SchedulerConfig{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
		Enabled:    cfg.Scheduler.Enabled,
	})
	built = true
	return a, nil
}

// OpenStore opens the Badger store described by cfg.Store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenStore(cfg *config.Config, logger zerolog.Logger) (*store.DB, error) {
	db, err := store.Open(store.Config{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
		GCInterval: cfg.Store.GCInterval,
		GCRatio:    cfg.Store.GCRatio,
	}, logger.With().Str("component", "store").Logger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

// NewCatalog builds the Spotify client described by cfg.Catalog.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCatalog(cfg *config.Config, httpClient *http.Client, logger zerolog.Logger) (*catalog.Client, error) {
	c, err := catalog.New(catalog.Config{
		ClientID:         cfg.Catalog.ClientID,
		ClientSecret:     cfg.Catalog.ClientSecret,
		TokenURL:         cfg.Catalog.TokenURL,
		BaseURL:          cfg.Catalog.BaseURL,
		Market:           cfg.Catalog.Market,
		NewReleasesLimit: cfg.Catalog.NewReleasesLimit,
		SearchLimit:      cfg.Catalog.SearchLimit,
		MaxAttempts:      cfg.Catalog.MaxAttempts,
		RetryBaseDelay:   cfg.Catalog.RetryBaseDelay,
		MaxRetryAfter:    cfg.Catalog.MaxRetryAfter,
		RequestTimeout:   cfg.Catalog.RequestTimeout,
		SearchCacheTTL:   cfg.Catalog.SearchCacheTTL,
		SearchCacheSize:  cfg.Catalog.SearchCacheSize,
	}, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("build catalog client: %w", err)
	}
	return c, nil
}

// BuildChannels registers the configured transports, each behind its own
// rate limiter. Email is mandatory; chat and SMS are skipped without
// credentials, so subscribers who chose them count as channel_disabled.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func BuildChannels(cfg *config.Config, httpClient *http.Client, logger zerolog.Logger) (*delivery.Registry, error) {
	registry := delivery.NewRegistry()

	email, err := delivery.NewEmailChannel(delivery.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		TLSMode:  cfg.SMTP.TLSMode,
		Timeout:  cfg.SMTP.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build email channel: %w", err)
	}
	registry.Register(delivery.NewRateLimited(email, cfg.SMTP.RatePerSecond, cfg.SMTP.Burst))

	if cfg.Telegram.Enabled() {
		chat, err := delivery.NewTelegramChannel(delivery.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			BaseURL:  cfg.Telegram.BaseURL,
			Timeout:  cfg.Telegram.Timeout,
		}, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("build chat channel: %w", err)
		}
		registry.Register(delivery.NewRateLimited(chat, cfg.Telegram.RatePerSecond, cfg.Telegram.Burst))
	} else {
		logger.Info().Msg("Chat channel disabled: TELEGRAM_BOT_TOKEN not set")
	}

	if cfg.SMS.Enabled() {
		sms, err := delivery.NewSMSChannel(delivery.SMSConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
			BaseURL:    cfg.SMS.BaseURL,
			Timeout:    cfg.SMS.Timeout,
		}, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("build sms channel: %w", err)
		}
		registry.Register(delivery.NewRateLimited(sms, cfg.SMS.RatePerSecond, cfg.SMS.Burst))
	} else {
		logger.Info().Msg("SMS channel disabled: Twilio credentials not set")
	}

	logger.Info().Interface("channels", registry.Names()).Msg("Notification channels ready")
	return registry, nil
}

// HTTPHandler builds the API router.
func (a *App) HTTPHandler() (http.Handler, error) {
	h, err := api.NewHandler(api.Deps{
		Subscribers:   a.DB.Subscribers(),
		Notifications: a.DB.Ledger(),
		Catalog:       a.Catalog,
		Cycles:        a.Reconciler,
		Store:         a.DB,
		Events:        a.Events,
	}, a.Version)
	if err != nil {
		return nil, err
	}

	sec := a.Config.Security
	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = sec.CORSOrigins
	mwCfg.RateLimitRequests = sec.RateLimitRequests
	mwCfg.RateLimitWindow = sec.RateLimitWindow
	mwCfg.RateLimitDisabled = sec.RateLimitDisabled
	mwCfg.MaxRequestBodySize = sec.MaxRequestBodySize

	var jwtManager *auth.JWTManager
	if sec.AdminJWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(sec.AdminJWTSecret, 0)
		if err != nil {
			return nil, fmt.Errorf("admin jwt: %w", err)
		}
	} else {
		a.logger.Warn().Msg("ADMIN_JWT_SECRET not set: admin endpoints are unauthenticated")
	}
	if sec.RateLimitDisabled {
		a.logger.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	return api.NewRouter(h, api.NewChiMiddleware(mwCfg), auth.NewMiddleware(jwtManager, api.DenyAdmin)), nil
}

// HTTPServer returns an *http.Server for the API on the configured address.
func (a *App) HTTPServer() (*http.Server, error) {
	handler, err := a.HTTPHandler()
	if err != nil {
		return nil, err
	}
	srv := a.Config.Server
	return &http.Server{
		Addr:              srv.Addr(),
		Handler:           handler,
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: srv.ReadTimeout,
		WriteTimeout:      srv.WriteTimeout,
		IdleTimeout:       srv.IdleTimeout,
	}, nil
}

// SupervisorTree places store GC, the scheduler and the HTTP server in the
// data, worker and api layers of a new tree.
func (a *App) SupervisorTree(logger *slog.Logger) (*supervisor.SupervisorTree, error) {
	server, err := a.HTTPServer()
	if err != nil {
		return nil, err
	}

	cfg := supervisor.DefaultTreeConfig()
	cfg.ShutdownTimeout = a.Config.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logger, cfg)
	if err != nil {
		return nil, err
	}

	tree.AddDataService(a.DB)
	tree.AddWorkerService(services.NewSchedulerService(a.Scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, a.Config.Server.ShutdownTimeout))
	return tree, nil
}

// Close stops the scheduler and closes the event publisher and the store.
func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
