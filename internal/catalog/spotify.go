// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/releasewatch/internal/metrics"
	"github.com/tomtom215/releasewatch/internal/models"
)

// Spotify wire shapes. Only the fields Releasewatch reads are declared.

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyExternalURLs struct {
	Spotify string `json:"spotify"`
}

type spotifySimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	AlbumType    string                `json:"album_type"`
	ReleaseDate  string                `json:"release_date"`
	TotalTracks  int                   `json:"total_tracks"`
	Artists      []spotifySimpleArtist `json:"artists"`
	Images       []spotifyImage        `json:"images"`
	ExternalURLs spotifyExternalURLs   `json:"external_urls"`
}

type newReleasesResponse struct {
	Albums struct {
		Items []spotifyAlbum `json:"items"`
		Total int            `json:"total"`
	} `json:"albums"`
}

type spotifyArtist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Popularity   int                 `json:"popularity"`
	Genres       []string            `json:"genres"`
	Images       []spotifyImage      `json:"images"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
}

type searchArtistsResponse struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
}

// GetNewReleases returns the current new-releases listing for the configured market.
func (c *Client) GetNewReleases(ctx context.Context) ([]models.Release, error) {
	query := url.Values{}
	query.Set("country", c.cfg.Market)
	query.Set("limit", strconv.Itoa(c.cfg.NewReleasesLimit))

	var resp newReleasesResponse
	if err := c.getJSON(ctx, "new_releases", "/browse/new-releases", query, &resp); err != nil {
		return nil, err
	}

	releases := make([]models.Release, 0, len(resp.Albums.Items))
	for i := range resp.Albums.Items {
		a := &resp.Albums.Items[i]
		if a.ID == "" {
			continue
		}
		artists := make([]models.ArtistRef, 0, len(a.Artists))
		for _, ar := range a.Artists {
			artists = append(artists, models.ArtistRef{ID: ar.ID, Name: ar.Name})
		}
		releases = append(releases, models.Release{
			ID:          a.ID,
			Name:        a.Name,
			ReleaseDate: a.ReleaseDate,
			AlbumType:   a.AlbumType,
			TotalTracks: a.TotalTracks,
			Artists:     artists,
			URL:         a.ExternalURLs.Spotify,
			ImageURL:    largestImage(a.Images),
		})
	}

	c.logger.Debug().Int("releases", len(releases)).Str("market", c.cfg.Market).Msg("Fetched new releases")
	return releases, nil
}

// SearchArtists returns artists matching query.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]models.Artist, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	cacheKey := c.cfg.Market + "|" + strings.ToLower(query)
	if c.searches != nil {
		cached, ok := c.searches.Get(cacheKey)
		metrics.RecordSearchCache(ok)
		if ok {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "artist")
	params.Set("limit", strconv.Itoa(c.cfg.SearchLimit))
	params.Set("market", c.cfg.Market)

	var resp searchArtistsResponse
	if err := c.getJSON(ctx, "search", "/search", params, &resp); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(resp.Artists.Items))
	for i := range resp.Artists.Items {
		a := &resp.Artists.Items[i]
		artists = append(artists, models.Artist{
			ID:         a.ID,
			Name:       a.Name,
			Popularity: a.Popularity,
			Genres:     a.Genres,
			ImageURL:   largestImage(a.Images),
			URL:        a.ExternalURLs.Spotify,
		})
	}
	if c.searches != nil {
		c.searches.Set(cacheKey, artists)
	}
	return artists, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func largestImage(images []spotifyImage) string {
	best := -1
	for i := range images {
		if best < 0 || images[i].Width > images[best].Width {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return images[best].URL
}
