// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package reconcile

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/tomtom215/releasewatch/internal/delivery"
	"github.com/tomtom215/releasewatch/internal/models"
)

// maxShortLength bounds the SMS body (two concatenated segments).
const maxShortLength = 320

var emailHTML = template.Must(template.New("release").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1a1a1a;">
  <p>Hi there!</p>
  {{- if .ImageURL}}
  <p><img src="{{.ImageURL}}" alt="{{.Album}}" width="300" style="border-radius: 8px;"></p>
  {{- end}}
  <p>🎵 <strong>New Album Released:</strong> {{.Album}}<br>
  👤 <strong>By:</strong> {{.Artists}} (matched your subscriptions)<br>
  📅 <strong>Release Date:</strong> {{.ReleaseDate}}</p>
  {{- if .URL}}
  <p>🎧 <a href="{{.URL}}">Listen on Spotify</a></p>
  {{- end}}
  <p>Enjoy the music! 🎶</p>
</body>
</html>
`))

type messageData struct {
	Album       string
	Artists     string
	ReleaseDate string
	URL         string
	ImageURL    string
}

// RenderMessage builds the notification for release rel addressed to to.
// matchedIDs selects which artist names appear; it must be non-empty.
func RenderMessage(rel *models.Release, matchedIDs []string, to string) (*delivery.Message, error) {
	names := rel.ArtistNames(matchedIDs)
	if len(names) == 0 {
		// Matched artists without display names fall back to the full listing.
		names = rel.ArtistNames(nil)
	}
	artists := strings.Join(names, ", ")

	data := messageData{
		Album:       rel.Name,
		Artists:     artists,
		ReleaseDate: rel.ReleaseDate,
		URL:         rel.URL,
		ImageURL:    rel.ImageURL,
	}

	var text strings.Builder
	text.WriteString("Hi there!\n\n")
	fmt.Fprintf(&text, "🎵 New Album Released: %s\n", rel.Name)
	fmt.Fprintf(&text, "👤 By: %s (matched your subscriptions)\n", artists)
	fmt.Fprintf(&text, "📅 Release Date: %s\n", rel.ReleaseDate)
	if rel.URL != "" {
		fmt.Fprintf(&text, "\n🎧 Listen on Spotify:\n%s\n", rel.URL)
	}
	text.WriteString("\nEnjoy the music! 🎶\n")

	var html strings.Builder
	if err := emailHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	short := fmt.Sprintf("🎵 %s just dropped %s (%s)", artists, rel.Name, rel.ReleaseDate)
	if rel.URL != "" {
		short += " " + rel.URL
	}

	return &delivery.Message{
		To:        to,
		Subject:   fmt.Sprintf("🎵 New Release: %s just dropped %s!", artists, rel.Name),
		Text:      text.String(),
		HTML:      html.String(),
		Short:     delivery.TruncateContent(short, maxShortLength),
		ReleaseID: rel.ID,
	}, nil
}
