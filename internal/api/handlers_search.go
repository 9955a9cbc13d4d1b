// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/releasewatch/internal/catalog"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/validation"
)

type searchQuery struct {
	Query string `json:"q" validate:"required,min=1,max=100"`
}

// SearchArtists handles GET /api/v1/search_artists?q=.
//
// @Summary Search artists
// @Description Proxies the Spotify artist search. /api/v1/search-artists is an alias.
// @Tags Catalog
// @Produce json
// @Param q query string true "Search text" minlength(1) maxlength(100)
// @Success 200 {object} APIResponse{data=[]models.Artist} "Matching artists"
// @Failure 400 {object} APIResponse "Validation error"
// @Failure 502 {object} APIResponse "Catalog upstream error"
// @Failure 503 {object} APIResponse "Catalog not configured"
// @Router /api/v1/search_artists [get]
func (h *Handler) SearchArtists(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	artists, err := h.deps.Catalog.SearchArtists(r.Context(), q.Query)
	if err != nil {
		var apiErr *catalog.APIError
		switch {
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, catalog.ErrNotConfigured):
			respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Artist search is not configured", err)
		case errors.Is(err, catalog.ErrCatalogUnavailable), errors.As(err, &apiErr):
			respondError(w, r, http.StatusBadGateway, CodeUpstream, "Music catalog is unavailable", err)
		default:
			respondError(w, r, http.StatusInternalServerError, CodeInternal, "Artist search failed", err)
		}
		return
	}
	if artists == nil {
		artists = []models.Artist{}
	}
	respondList(w, r, artists, len(artists))
}
