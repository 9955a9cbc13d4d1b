// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package models

import (
	"fmt"
	"time"
)

// ArtistRef is a contributing artist as listed on a release.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Release is a catalog entry fetched fresh every cycle. It is never persisted.
type Release struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ReleaseDate string      `json:"release_date"`
	AlbumType   string      `json:"album_type,omitempty"`
	TotalTracks int         `json:"total_tracks,omitempty"`
	Artists     []ArtistRef `json:"artists"`
	URL         string      `json:"url"`
	ImageURL    string      `json:"image_url,omitempty"`
}

// ArtistIDs returns the IDs of the contributing artists in listing order.
func (r *Release) ArtistIDs() []string {
	ids := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// ArtistNames returns the display names of the artists whose IDs are in ids,
// in listing order. A nil ids returns every name.
func (r *Release) ArtistNames(ids []string) []string {
	var keep map[string]bool
	if ids != nil {
		keep = make(map[string]bool, len(ids))
		for _, id := range ids {
			keep[id] = true
		}
	}

	names := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		if keep != nil && !keep[a.ID] {
			continue
		}
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// Artist is an artist search result.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// ============================================================================
// Notification ledger
// ============================================================================

// NotificationKey is the deduplication key of the ledger.
type NotificationKey struct {
	SubscriberEmail string
	ReleaseID       string
	Channel         Channel
}

func (k NotificationKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SubscriberEmail, k.ReleaseID, k.Channel)
}

// NotificationRecord is an append-only ledger entry for one dispatch.
type NotificationRecord struct {
	SubscriberEmail  string    `json:"subscriber_email"`
	ReleaseID        string    `json:"release_id"`
	Channel          Channel   `json:"channel"`
	ReleaseName      string    `json:"release_name"`
	ReleaseURL       string    `json:"release_url,omitempty"`
	ReleaseArtistIDs []string  `json:"release_artist_ids"`
	MatchedArtistIDs []string  `json:"matched_artist_ids"`
	Address          string    `json:"address"`
	ExternalID       string    `json:"external_id,omitempty"`
	CycleID          string    `json:"cycle_id,omitempty"`
	SentAt           time.Time `json:"sent_at"`
}

// Key returns the record's deduplication key.
func (r *NotificationRecord) Key() NotificationKey {
	return NotificationKey{SubscriberEmail: r.SubscriberEmail, ReleaseID: r.ReleaseID, Channel: r.Channel}
}
