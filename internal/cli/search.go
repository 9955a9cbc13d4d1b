// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package cli

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/releasewatch/internal/app"
)

func newSearchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search the catalog for artists",
		Long: `Search the catalog for artists. The artist IDs printed are the values a
subscriber puts in followed_artists.

Examples:
  releasectl search radiohead
  releasectl search "boards of canada" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd, strings.Join(args, " "))
		},
	}
}

func runSearch(opts *RootOptions, cmd *cobra.Command, query string) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	client, err := app.NewCatalog(cfg, &http.Client{Timeout: 60 * time.Second}, opts.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build catalog client", err)
	}

	artists, err := client.SearchArtists(cmd.Context(), query)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}

	return opts.output(cmd, artists, func(p *printer) {
		if len(artists) == 0 {
			p.line("no artists match %q", query)
			return
		}
		p.row("ID", "NAME", "POPULARITY", "GENRES")
		for _, a := range artists {
			p.row(a.ID, a.Name, fmt.Sprint(a.Popularity), strings.Join(a.Genres, ", "))
		}
	})
}
