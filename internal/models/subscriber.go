// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package models holds the canonical in-memory shapes shared by the store,
// the catalog client, the channel adapters and the reconciliation loop.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// Channels
// ============================================================================

// Channel identifies a notification transport.
type Channel string

const (
	// ChannelEmail delivers over SMTP to the subscriber identity.
	ChannelEmail Channel = "email"

	// ChannelChat delivers a Telegram bot message to the subscriber chat ID.
	ChannelChat Channel = "chat"

	// ChannelSMS delivers a text message to the subscriber phone number.
	ChannelSMS Channel = "sms"
)

// AllChannels lists every supported channel in dispatch order.
var AllChannels = []Channel{ChannelEmail, ChannelChat, ChannelSMS}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelSMS:
		return true
	}
	return false
}

// ParseChannel maps user input to a Channel. "telegram" and "text" are
// accepted as aliases of chat and sms respectively.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email", "mail":
		return ChannelEmail, nil
	case "chat", "telegram":
		return ChannelChat, nil
	case "sms", "text":
		return ChannelSMS, nil
	}
	return "", fmt.Errorf("unknown notification channel %q", s)
}

// ============================================================================
// Subscriber
// ============================================================================

// FollowedArtist is an artist on a subscriber's interest list. Only ID
// determines membership; Name and URL are descriptive.
type FollowedArtist struct {
	ID   string `json:"id" validate:"required,max=64"`
	Name string `json:"name,omitempty" validate:"max=256"`
	URL  string `json:"url,omitempty" validate:"omitempty,url,max=512"`
}

// Subscriber is one person receiving release notifications.
type Subscriber struct {
	Email           string           `json:"email"`
	FollowedArtists []FollowedArtist `json:"followed_artists"`
	Channels        []Channel        `json:"notification_channels"`
	ChatID          string           `json:"telegram_chat_id,omitempty"`
	PhoneNumber     string           `json:"phone_number,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EffectiveChannels returns the subscriber's channels in dispatch order with
// duplicates and unknown values removed. An empty preference means email only.
func (s *Subscriber) EffectiveChannels() []Channel {
	selected := make(map[Channel]bool, len(s.Channels))
	for _, c := range s.Channels {
		if c.Valid() {
			selected[c] = true
		}
	}
	if len(selected) == 0 {
		return []Channel{ChannelEmail}
	}

	out := make([]Channel, 0, len(selected))
	for _, c := range AllChannels {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out
}

// AddressFor returns the destination for ch, or false when the subscriber
// has no usable address for it.
func (s *Subscriber) AddressFor(ch Channel) (string, bool) {
	var addr string
	switch ch {
	case ChannelEmail:
		addr = s.Email
	case ChannelChat:
		addr = s.ChatID
	case ChannelSMS:
		addr = s.PhoneNumber
	}
	addr = strings.TrimSpace(addr)
	return addr, addr != ""
}

// FollowedIDs returns the set of followed artist IDs.
func (s *Subscriber) FollowedIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.FollowedArtists))
	for _, a := range s.FollowedArtists {
		if a.ID != "" {
			ids[a.ID] = struct{}{}
		}
	}
	return ids
}

// Touch refreshes UpdatedAt, and sets CreatedAt on first write.
func (s *Subscriber) Touch(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}
