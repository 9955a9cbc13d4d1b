// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package catalog

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenCache holds the client-credentials bearer token until it expires.
// oauth2.Token.Valid already applies a small expiry margin, so a token that
// is about to lapse is treated as absent.
type tokenCache struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
	// fetches counts token endpoint round trips.
	fetches int
}

func newTokenCache(clientID, clientSecret, tokenURL string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
	}
}

// Token returns the cached token, fetching a new one when absent or expired.
func (t *tokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token.Valid() {
		return t.token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
	tok, err := t.cfg.Token(ctx)
	t.fetches++
	if err != nil {
		return nil, err
	}
	t.token = tok
	return tok, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Used when the API rejects a token before its declared expiry.
func (t *tokenCache) Invalidate() {
	t.mu.Lock()
	t.token = nil
	t.mu.Unlock()
}

func (t *tokenCache) fetchCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches
}
