// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const newReleasesBody = `{
  "albums": {
    "items": [
      {
        "id": "4uLU6hMCjMI75M1A2tKUQC",
        "name": "Dawn FM",
        "album_type": "album",
        "release_date": "2022-01-07",
        "total_tracks": 16,
        "artists": [{"id": "1Xyo4u8uXC1ZmMpatF05PJ", "name": "The Weeknd"}],
        "images": [
          {"url": "https://i.scdn.co/small.jpg", "width": 64, "height": 64},
          {"url": "https://i.scdn.co/large.jpg", "width": 640, "height": 640}
        ],
        "external_urls": {"spotify": "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC"}
      },
      {"id": "", "name": "broken entry"}
    ],
    "total": 2
  }
}`

const searchBody = `{
  "artists": {
    "items": [
      {
        "id": "1Xyo4u8uXC1ZmMpatF05PJ",
        "name": "The Weeknd",
        "popularity": 96,
        "genres": ["canadian contemporary r&b", "pop"],
        "images": [{"url": "https://i.scdn.co/w.jpg", "width": 640, "height": 640}],
        "external_urls": {"spotify": "https://open.spotify.com/artist/1Xyo4u8uXC1ZmMpatF05PJ"}
      }
    ]
  }
}`

// fakeSpotify serves the token endpoint and the API from one httptest server.
type fakeSpotify struct {
	t *testing.T

	tokenCalls int64
	apiCalls   int64
	expiresIn  int

	mu      sync.Mutex
	handler http.HandlerFunc
	lastReq *http.Request
}

func newFakeSpotify(t *testing.T, api http.HandlerFunc) (*fakeSpotify, *httptest.Server) {
	f := &fakeSpotify{t: t, handler: api, expiresIn: 3600}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			atomic.AddInt64(&f.tokenCalls, 1)
			if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
				http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
				return
			}
			if id, secret, ok := r.BasicAuth(); !ok || id != "client-id" || secret != "client-secret" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Invalid client"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-` + time.Now().Format("150405.000000") + `","token_type":"Bearer","expires_in":` + strconv.Itoa(f.expiresIn) + `}`))
			return
		}

		atomic.AddInt64(&f.apiCalls, 1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.lastReq = r
		h := f.handler
		f.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

// recordingWait captures requested delays without sleeping.
type recordingWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingWait) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) (*Client, *recordingWait) {
	t.Helper()
	cfg := Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		TokenURL:       srv.URL + "/api/token",
		BaseURL:        srv.URL + "/v1",
		RetryBaseDelay: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rw := &recordingWait{}
	c.wait = rw.wait
	return c, rw
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{ClientID: "id"}, nil, zerolog.Nop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGetNewReleases(t *testing.T) {
	t.Parallel()

	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/browse/new-releases" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(newReleasesBody))
	})
	c, _ := newTestClient(t, srv, nil)

	releases, err := c.GetNewReleases(context.Background())
	if err != nil {
		t.Fatalf("GetNewReleases: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("got %d releases, want 1 (entry without id dropped)", len(releases))
	}
	r := releases[0]
	if r.ID != "4uLU6hMCjMI75M1A2tKUQC" || r.Name != "Dawn FM" || r.ReleaseDate != "2022-01-07" {
		t.Errorf("unexpected release %+v", r)
	}
	if len(r.Artists) != 1 || r.Artists[0].ID != "1Xyo4u8uXC1ZmMpatF05PJ" {
		t.Errorf("artists = %+v", r.Artists)
	}
	if r.ImageURL != "https://i.scdn.co/large.jpg" {
		t.Errorf("ImageURL = %q, want largest image", r.ImageURL)
	}
	if r.URL != "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("URL = %q", r.URL)
	}

	f.mu.Lock()
	q := f.lastReq.URL.Query()
	f.mu.Unlock()
	if q.Get("country") != "US" || q.Get("limit") != "10" {
		t.Errorf("query = %v", q)
	}
}

func TestSearchArtists(t *testing.T) {
	t.Parallel()

	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	})
	c, _ := newTestClient(t, srv, func(cfg *Config) { cfg.Market = "CA" })

	artists, err := c.SearchArtists(context.Background(), "  weeknd ")
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if len(artists) != 1 || artists[0].Popularity != 96 || artists[0].ImageURL != "https://i.scdn.co/w.jpg" {
		t.Errorf("unexpected artists %+v", artists)
	}

	f.mu.Lock()
	q := f.lastReq.URL.Query()
	f.mu.Unlock()
	want := map[string]string{"q": "weeknd", "type": "artist", "limit": "50", "market": "CA"}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}

	if _, err := c.SearchArtists(context.Background(), " "); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestSearchArtistsCache(t *testing.T) {
	t.Parallel()

	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	})
	c, _ := newTestClient(t, srv, func(cfg *Config) { cfg.SearchCacheTTL = time.Minute })

	for _, q := range []string{"weeknd", "Weeknd ", "WEEKND"} {
		artists, err := c.SearchArtists(context.Background(), q)
		if err != nil {
			t.Fatalf("SearchArtists(%q): %v", q, err)
		}
		if len(artists) != 1 {
			t.Fatalf("SearchArtists(%q) returned %d artists", q, len(artists))
		}
	}
	if got := atomic.LoadInt64(&f.apiCalls); got != 1 {
		t.Errorf("api calls = %d, want 1", got)
	}

	if _, err := c.SearchArtists(context.Background(), "drake"); err != nil {
		t.Fatalf("SearchArtists(drake): %v", err)
	}
	if got := atomic.LoadInt64(&f.apiCalls); got != 2 {
		t.Errorf("api calls = %d, want 2", got)
	}
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	t.Parallel()

	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newReleasesBody))
	})
	c, _ := newTestClient(t, srv, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.GetNewReleases(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&f.tokenCalls); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}

	// An already-expired token forces a refresh on every call.
	f2, srv2 := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newReleasesBody))
	})
	f2.expiresIn = 1 // below the oauth2 expiry margin, so never reused
	c2, _ := newTestClient(t, srv2, nil)
	for i := 0; i < 2; i++ {
		if _, err := c2.GetNewReleases(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := c2.tokens.fetchCount(); got != 2 {
		t.Errorf("token fetched %d times, want 2", got)
	}
}

func TestInvalidCredentialsNotRetried(t *testing.T) {
	t.Parallel()

	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newReleasesBody))
	})
	c, rw := newTestClient(t, srv, func(cfg *Config) { cfg.ClientSecret = "wrong" })

	_, err := c.GetNewReleases(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Endpoint != "token" {
		t.Fatalf("err = %v, want token APIError", err)
	}
	if got := atomic.LoadInt64(&f.tokenCalls); got != 1 {
		t.Errorf("token calls = %d, want 1", got)
	}
	if len(rw.delays) != 0 {
		t.Errorf("unexpected waits %v", rw.delays)
	}
}

func TestRateLimitUsesRetryAfter(t *testing.T) {
	t.Parallel()

	var calls int64
	_, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(newReleasesBody))
	})
	c, rw := newTestClient(t, srv, nil)

	if _, err := c.GetNewReleases(context.Background()); err != nil {
		t.Fatalf("GetNewReleases: %v", err)
	}
	if len(rw.delays) != 1 || rw.delays[0] != 7*time.Second {
		t.Errorf("delays = %v, want [7s]", rw.delays)
	}
}

func TestRetryAfterCappedAndFallback(t *testing.T) {
	t.Parallel()

	c := &Client{cfg: Config{MaxRetryAfter: 30 * time.Second}}
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"seconds", "3", 3 * time.Second},
		{"capped", "3600", 30 * time.Second},
		{"missing", "", 5 * time.Second},
		{"garbage", "soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := c.retryAfter(h, 5*time.Second); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerErrorsBackOffExponentially(t *testing.T) {
	t.Parallel()

	var calls int64
	_, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"status":502,"message":"Bad gateway"}}`))
	})
	c, rw := newTestClient(t, srv, func(cfg *Config) { cfg.MaxAttempts = 4 })

	_, err := c.GetNewReleases(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
	if got := atomic.LoadInt64(&calls); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(rw.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rw.delays, want)
	}
	for i := range want {
		if rw.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rw.delays[i], want[i])
		}
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls int64
	_, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"status":400,"message":"Invalid market"}}`))
	})
	c, _ := newTestClient(t, srv, nil)

	_, err := c.GetNewReleases(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Invalid market" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestUnauthorizedRefreshesToken(t *testing.T) {
	t.Parallel()

	var calls int64
	f, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(newReleasesBody))
	})
	c, _ := newTestClient(t, srv, nil)

	if _, err := c.GetNewReleases(context.Background()); err != nil {
		t.Fatalf("GetNewReleases: %v", err)
	}
	if got := atomic.LoadInt64(&f.tokenCalls); got != 2 {
		t.Errorf("token calls = %d, want 2", got)
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	t.Parallel()

	_, srv := newFakeSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, _ := newTestClient(t, srv, nil)
	c.wait = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	c.cfg.RetryBaseDelay = time.Hour
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.GetNewReleases(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt backoff")
	}
}
