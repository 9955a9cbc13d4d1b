// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the default locations to search for config files.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/releasewatch/config.yaml",
	"/etc/releasewatch/config.yml",
}

// ConfigPathEnvVar is the environment variable to specify a custom config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			TokenURL:         "https://accounts.spotify.com/api/token",
			BaseURL:          "https://api.spotify.com/v1",
			Market:           "US",
			NewReleasesLimit: 10,
			SearchLimit:      50,
			MaxAttempts:      3,
			RetryBaseDelay:   2 * time.Second,
			MaxRetryAfter:    60 * time.Second,
			RequestTimeout:   15 * time.Second,
			SearchCacheTTL:   10 * time.Minute,
			SearchCacheSize:  1000,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Releasewatch",
			TLSMode:  "starttls",
			Timeout:  30 * time.Second,
		},
		Telegram: TelegramConfig{
			BaseURL:       "https://api.telegram.org",
			Timeout:       15 * time.Second,
			RatePerSecond: 30,
			Burst:         30,
		},
		SMS: SMSConfig{
			BaseURL:       "https://api.twilio.com",
			Timeout:       15 * time.Second,
			RatePerSecond: 1,
			Burst:         1,
		},
		Store: StoreConfig{
			Path:       "/data/releasewatch",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
			GCRatio:    0.5,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			Interval:        time.Hour,
			RunOnStart:      true,
			DispatchTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:        []string{"*"},
			RateLimitRequests:  100,
			RateLimitWindow:    time.Minute,
			MaxRequestBodySize: 1 << 20,
		},
		Events: EventsConfig{
			Enabled:       true,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
			SubjectPrefix: "releasewatch.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration using Koanf with layered sources:
//  1. Defaults (built-in)
//  2. Config file (optional, YAML)
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to load, or "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// The left-hand names match the variables the service has always read.
var envMappings = map[string]string{
	// Catalog (Spotify)
	"spotify_client_id":          "catalog.client_id",
	"spotify_client_secret":      "catalog.client_secret",
	"spotify_token_url":          "catalog.token_url",
	"spotify_api_url":            "catalog.base_url",
	"spotify_market":             "catalog.market",
	"spotify_new_releases_limit": "catalog.new_releases_limit",
	"spotify_search_limit":       "catalog.search_limit",
	"spotify_max_attempts":       "catalog.max_attempts",
	"spotify_retry_base_delay":   "catalog.retry_base_delay",
	"spotify_max_retry_after":    "catalog.max_retry_after",
	"spotify_request_timeout":    "catalog.request_timeout",
	"spotify_search_cache_ttl":   "catalog.search_cache_ttl",
	"spotify_search_cache_size":  "catalog.search_cache_size",

	// Email
	"smtp_server":          "smtp.host",
	"smtp_host":            "smtp.host",
	"smtp_port":            "smtp.port",
	"smtp_user":            "smtp.username",
	"smtp_password":        "smtp.password",
	"from_email":           "smtp.from",
	"from_name":            "smtp.from_name",
	"smtp_tls_mode":        "smtp.tls_mode",
	"smtp_timeout":         "smtp.timeout",
	"smtp_rate_per_second": "smtp.rate_per_second",

	// Chat
	"telegram_bot_token":       "telegram.bot_token",
	"telegram_api_url":         "telegram.base_url",
	"telegram_timeout":         "telegram.timeout",
	"telegram_rate_per_second": "telegram.rate_per_second",

	// SMS
	"twilio_account_sid":     "sms.account_sid",
	"twilio_auth_token":      "sms.auth_token",
	"twilio_phone_number":    "sms.from_number",
	"twilio_api_url":         "sms.base_url",
	"twilio_timeout":         "sms.timeout",
	"twilio_rate_per_second": "sms.rate_per_second",

	// Store
	"badger_path":        "store.path",
	"badger_in_memory":   "store.in_memory",
	"badger_sync_writes": "store.sync_writes",
	"badger_gc_interval": "store.gc_interval",

	// Scheduler
	"scheduler_enabled": "scheduler.enabled",
	"check_interval":    "scheduler.interval",
	"run_on_start":      "scheduler.run_on_start",
	"dispatch_timeout":  "scheduler.dispatch_timeout",

	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	// Security
	"admin_jwt_secret":      "security.admin_jwt_secret",
	"cors_origins":          "security.cors_origins",
	"rate_limit_requests":   "security.rate_limit_requests",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"max_request_body_size": "security.max_request_body_size",

	// Events
	"events_enabled":      "events.enabled",
	"nats_url":            "events.nats_url",
	"nats_embedded":       "events.embedded",
	"nats_embedded_host":  "events.embedded_host",
	"nats_embedded_port":  "events.embedded_port",
	"nats_subject_prefix": "events.subject_prefix",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SPOTIFY_CLIENT_ID -> catalog.client_id
//   - SMTP_SERVER -> smtp.host
//   - TWILIO_PHONE_NUMBER -> sms.from_number
//
// Unmapped variables return "" and are skipped, so unrelated environment
// variables never leak into the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
