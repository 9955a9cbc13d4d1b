// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateCatalog,
		c.validateSMTP,
		c.validateTelegram,
		c.validateSMS,
		c.validateStore,
		c.validateScheduler,
		c.validateServer,
		c.validateSecurity,
		c.validateEvents,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.ClientID == "" || c.Catalog.ClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required")
	}
	if err := validateHTTPURL(c.Catalog.TokenURL, "catalog.token_url"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Catalog.BaseURL, "catalog.base_url"); err != nil {
		return err
	}
	if c.Catalog.NewReleasesLimit < 1 || c.Catalog.NewReleasesLimit > 50 {
		return fmt.Errorf("catalog.new_releases_limit must be between 1 and 50, got %d", c.Catalog.NewReleasesLimit)
	}
	if c.Catalog.SearchLimit < 1 || c.Catalog.SearchLimit > 50 {
		return fmt.Errorf("catalog.search_limit must be between 1 and 50, got %d", c.Catalog.SearchLimit)
	}
	if c.Catalog.MaxAttempts < 1 {
		return fmt.Errorf("catalog.max_attempts must be at least 1, got %d", c.Catalog.MaxAttempts)
	}
	return nil
}

// validateSMTP validates the email channel. Email is always enabled.
func (c *Config) validateSMTP() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_SERVER is required")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("FROM_EMAIL is required")
	}
	if _, err := mail.ParseAddress(c.SMTP.From); err != nil {
		return fmt.Errorf("FROM_EMAIL is invalid: %w", err)
	}
	switch strings.ToLower(c.SMTP.TLSMode) {
	case "starttls", "implicit", "none":
	default:
		return fmt.Errorf("smtp.tls_mode must be starttls, implicit or none, got %q", c.SMTP.TLSMode)
	}
	if (c.SMTP.Username == "") != (c.SMTP.Password == "") {
		return fmt.Errorf("SMTP_USER and SMTP_PASSWORD must be set together")
	}
	return nil
}

// validateTelegram validates the chat channel (only if enabled)
func (c *Config) validateTelegram() error {
	if !c.Telegram.Enabled() {
		return nil
	}
	if !strings.Contains(c.Telegram.BotToken, ":") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN must have the form <bot id>:<secret>")
	}
	return validateHTTPURL(c.Telegram.BaseURL, "telegram.base_url")
}

// validateSMS validates the SMS channel (only if enabled)
func (c *Config) validateSMS() error {
	if c.SMS.partial() {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER must be set together")
	}
	if !c.SMS.Enabled() {
		return nil
	}
	if !strings.HasPrefix(c.SMS.FromNumber, "+") {
		return fmt.Errorf("TWILIO_PHONE_NUMBER must be in E.164 format, got %q", c.SMS.FromNumber)
	}
	return validateHTTPURL(c.SMS.BaseURL, "sms.base_url")
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if c.Store.GCRatio <= 0 || c.Store.GCRatio >= 1 {
		return fmt.Errorf("store.gc_ratio must be between 0 and 1, got %v", c.Store.GCRatio)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.DispatchTimeout <= 0 {
		return fmt.Errorf("scheduler.dispatch_timeout must be positive, got %s", c.Scheduler.DispatchTimeout)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.AdminJWTSecret != "" && len(c.Security.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitRequests)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Security.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled || c.Events.NATSURL == "" {
		return nil
	}
	u, err := url.Parse(c.Events.NATSURL)
	if err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return fmt.Errorf("NATS_URL scheme must be nats or tls, got %q", u.Scheme)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
}

// validateHTTPURL checks that rawURL is an absolute http(s) URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}
