// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package config loads Releasewatch configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml, or CONFIG_PATH)
//  3. Environment Variables: override any setting, see envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Catalog.ClientID, cfg.SMTP.Host, etc. are now populated
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	SMS       SMSConfig       `koanf:"sms"`
	Store     StoreConfig     `koanf:"store"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CatalogConfig holds the Spotify Web API client settings.
type CatalogConfig struct {
	ClientID         string        `koanf:"client_id"`
	ClientSecret     string        `koanf:"client_secret"`
	TokenURL         string        `koanf:"token_url"`
	BaseURL          string        `koanf:"base_url"`
	Market           string        `koanf:"market"`
	NewReleasesLimit int           `koanf:"new_releases_limit"`
	SearchLimit      int           `koanf:"search_limit"`
	MaxAttempts      int           `koanf:"max_attempts"`
	RetryBaseDelay   time.Duration `koanf:"retry_base_delay"`
	MaxRetryAfter    time.Duration `koanf:"max_retry_after"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	SearchCacheTTL   time.Duration `koanf:"search_cache_ttl"`
	SearchCacheSize  int           `koanf:"search_cache_size"`
}

// SMTPConfig holds the email channel settings. Email is the default
// channel, so Host and From are required.
type SMTPConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	From          string        `koanf:"from"`
	FromName      string        `koanf:"from_name"`
	TLSMode       string        `koanf:"tls_mode"` // starttls, implicit or none
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// TelegramConfig holds the chat channel settings. The channel is enabled
// only when BotToken is set.
type TelegramConfig struct {
	BotToken      string        `koanf:"bot_token"`
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// Enabled reports whether the chat channel has credentials.
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

// SMSConfig holds the Twilio settings. The channel is enabled only when the
// account SID, auth token and sender number are all set.
type SMSConfig struct {
	AccountSID    string        `koanf:"account_sid"`
	AuthToken     string        `koanf:"auth_token"`
	FromNumber    string        `koanf:"from_number"`
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// Enabled reports whether the SMS channel has credentials.
func (c *SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// partial reports whether some but not all SMS credentials are set.
func (c *SMSConfig) partial() bool {
	return !c.Enabled() && (c.AccountSID != "" || c.AuthToken != "" || c.FromNumber != "")
}

// StoreConfig holds the Badger settings.
type StoreConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// SchedulerConfig controls the reconciliation schedule.
type SchedulerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Interval        time.Duration `koanf:"interval"`
	RunOnStart      bool          `koanf:"run_on_start"`
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SecurityConfig holds API protection settings.
type SecurityConfig struct {
	// AdminJWTSecret signs admin bearer tokens (HS256). Empty leaves the
	// admin routes open, which is only acceptable on a private network.
	AdminJWTSecret string `koanf:"admin_jwt_secret"`

	CORSOrigins        []string      `koanf:"cors_origins"`
	RateLimitRequests  int           `koanf:"rate_limit_requests"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled  bool          `koanf:"rate_limit_disabled"`
	MaxRequestBodySize int64         `koanf:"max_request_body_size"`
}

// EventsConfig controls domain event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	Embedded      bool   `koanf:"embedded"`
	EmbeddedHost  string `koanf:"embedded_host"`
	EmbeddedPort  int    `koanf:"embedded_port"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds the zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
