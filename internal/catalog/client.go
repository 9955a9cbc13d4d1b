// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package catalog is the Spotify Web API client used to discover new
// releases and to search artists for subscription forms.
//
// Every call goes through a bounded retry loop:
//   - network errors and 5xx responses back off exponentially (base * 2^attempt)
//   - 429 responses wait for the server's Retry-After hint instead
//   - 401 responses drop the cached token and retry immediately
//   - any other 4xx fails without retrying
//
// Exhausting the attempt budget returns an error wrapping ErrCatalogUnavailable.
// The whole loop runs inside a circuit breaker so a dead upstream is not
// hammered every cycle.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/tomtom215/releasewatch/internal/cache"
	"github.com/tomtom215/releasewatch/internal/metrics"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/resilience"
)

const (
	// DefaultTokenURL is the Spotify accounts token endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	maxErrorBodyBytes = 4 << 10
)

var (
	// ErrCatalogUnavailable means the catalog could not be reached within the retry budget.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrNotConfigured means client credentials are missing.
	ErrNotConfigured = errors.New("catalog client credentials not configured")
)

// APIError is a non-retryable HTTP error returned by the catalog.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("catalog %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Config configures the catalog client.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string

	// Market is the ISO country code for new releases and search (default US).
	Market string

	// NewReleasesLimit is the page size for browse/new-releases (1-50, default 10).
	NewReleasesLimit int

	// SearchLimit is the page size for artist search (1-50, default 50).
	SearchLimit int

	// MaxAttempts is the total number of tries per call, including the first (default 3).
	MaxAttempts int

	// RetryBaseDelay is the first backoff delay; it doubles per attempt (default 2s).
	RetryBaseDelay time.Duration

	// MaxRetryAfter caps a server-supplied Retry-After wait (default 60s).
	MaxRetryAfter time.Duration

	// RequestTimeout bounds a single HTTP round trip (default 15s).
	RequestTimeout time.Duration

	// SearchCacheTTL keeps artist search results in memory. Zero disables
	// the cache.
	SearchCacheTTL time.Duration

	// SearchCacheSize bounds the number of cached queries (default 1000).
	SearchCacheSize int
}

func (c *Config) applyDefaults() {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Market == "" {
		c.Market = "US"
	}
	if c.NewReleasesLimit <= 0 || c.NewReleasesLimit > 50 {
		c.NewReleasesLimit = 10
	}
	if c.SearchLimit <= 0 || c.SearchLimit > 50 {
		c.SearchLimit = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
}

// Client talks to the Spotify Web API.
//
// Every request goes through the circuit breaker and then up to
// MaxAttempts round trips:
//
//  1. Fetches a client-credentials token, cached until shortly before expiry
//  2. Sends the GET with the bearer token
//  3. On 429 waits Retry-After, on 401 drops the cached token, and on 5xx
//     or a network error backs off exponentially before the next try
//
// Artist searches are served from an LRU cache when SearchCacheTTL is set.
//
// Example usage:
//
//	client, err := catalog.New(catalog.Config{
//	    ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
//	    ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
//	    Market:       "US",
//	}, nil, logger)
//	if err != nil {
//	    return err
//	}
//	releases, err := client.GetNewReleases(ctx)
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *tokenCache
	breaker    *resilience.Breaker
	searches   *cache.LRU[[]models.Artist]
	logger     zerolog.Logger

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a catalog client. httpClient may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	bcfg := resilience.DefaultBreakerConfig("spotify-api")
	bcfg.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return true
		}
		var apiErr *APIError
		return errors.As(err, &apiErr)
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     newTokenCache(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, httpClient),
		breaker:    resilience.NewBreaker(bcfg),
		logger:     logger.With().Str("component", "catalog").Logger(),
		wait:       sleepCtx,
	}
	if cfg.SearchCacheTTL > 0 {
		c.searches = cache.NewLRU[[]models.Artist](cfg.SearchCacheSize, cfg.SearchCacheTTL)
	}
	return c, nil
}

// getJSON performs a GET against the API and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	err := c.breaker.Execute(func() error {
		return c.doWithRetry(ctx, endpoint, path, query, out)
	})
	if resilience.IsOpen(err) {
		return fmt.Errorf("%w: %s: circuit open", ErrCatalogUnavailable, endpoint)
	}
	return err
}

func (c *Client) doWithRetry(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay, retry, err := c.attempt(ctx, endpoint, reqURL, attempt, out)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err

		if attempt == c.cfg.MaxAttempts-1 {
			break
		}
		c.logger.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying catalog request")
		if err := c.wait(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v", ErrCatalogUnavailable, endpoint, c.cfg.MaxAttempts, lastErr)
}

// attempt performs one round trip. It returns the delay before the next try
// and whether another try is worthwhile.
func (c *Client) attempt(ctx context.Context, endpoint, reqURL string, attempt int, out interface{}) (time.Duration, bool, error) {
	backoff := c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			status := rerr.Response.StatusCode
			if status == http.StatusTooManyRequests {
				metrics.RecordCatalogRetry("rate_limited")
				return c.retryAfter(rerr.Response.Header, backoff), true, fmt.Errorf("token endpoint rate limited")
			}
			if status >= 400 && status < 500 {
				return 0, false, &APIError{Endpoint: "token", StatusCode: status, Message: rerr.ErrorDescription}
			}
		}
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		metrics.RecordCatalogRetry("token")
		return backoff, true, fmt.Errorf("fetch token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCatalogRequest(endpoint, 0)
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		metrics.RecordCatalogRetry("network")
		return backoff, true, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordCatalogRequest(endpoint, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, false, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return 0, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp.Body)
		metrics.RecordCatalogRetry("rate_limited")
		return c.retryAfter(resp.Header, backoff), true, fmt.Errorf("%s rate limited (HTTP 429)", endpoint)

	case resp.StatusCode == http.StatusUnauthorized:
		drain(resp.Body)
		c.tokens.Invalidate()
		metrics.RecordCatalogRetry("unauthorized")
		return 0, true, fmt.Errorf("%s rejected token (HTTP 401)", endpoint)

	case resp.StatusCode >= 500:
		msg := readErrorMessage(resp.Body)
		metrics.RecordCatalogRetry("server_error")
		return backoff, true, fmt.Errorf("%s server error (HTTP %d): %s", endpoint, resp.StatusCode, msg)

	default:
		return 0, false, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
}

// retryAfter returns the Retry-After hint in seconds (RFC 6585), capped at
// MaxRetryAfter. A missing or malformed header falls back to the backoff.
func (c *Client) retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	d := fallback
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	} else if when, err := http.ParseTime(v); err == nil {
		d = time.Until(when)
	}
	if d < 0 {
		d = 0
	}
	if d > c.cfg.MaxRetryAfter {
		d = c.cfg.MaxRetryAfter
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBodyBytes))
}

// readErrorMessage extracts error.message from a Spotify error body,
// falling back to the raw (truncated) body.
func readErrorMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	var payload struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}
