// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/releasewatch/internal/logging"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/store"
	"github.com/tomtom215/releasewatch/internal/validation"
)

// SubscribeRequest creates or updates a subscriber. The subscribed_artists
// and notification_methods keys are accepted as aliases for older clients.
type SubscribeRequest struct {
	Email             string                  `json:"email" validate:"required,email,max=254"`
	FollowedArtists   []models.FollowedArtist `json:"followed_artists" validate:"max=500,dive"`
	SubscribedArtists []models.FollowedArtist `json:"subscribed_artists,omitempty" validate:"max=500,dive"`
	Channels          []string                `json:"notification_channels" validate:"max=6,dive,notification_channel"`
	Methods           []string                `json:"notification_methods,omitempty" validate:"max=6,dive,notification_channel"`
	ChatID            string                  `json:"telegram_chat_id,omitempty" validate:"omitempty,telegram_chat_id"`
	PhoneNumber       string                  `json:"phone_number,omitempty" validate:"omitempty,e164"`
}

// UpdateChatIDRequest sets the Telegram chat ID of an existing subscriber.
type UpdateChatIDRequest struct {
	Email  string `json:"email" validate:"required,email,max=254"`
	ChatID string `json:"telegram_chat_id" validate:"required,telegram_chat_id"`
}

// UpdatePhoneRequest sets the phone number of an existing subscriber.
type UpdatePhoneRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type emailQuery struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (req *SubscribeRequest) artists() []models.FollowedArtist {
	if len(req.FollowedArtists) > 0 || len(req.SubscribedArtists) == 0 {
		return req.FollowedArtists
	}
	return req.SubscribedArtists
}

// channels parses the requested channels, deduplicated in request order.
// It returns nil when the request did not mention channels.
func (req *SubscribeRequest) channels() []models.Channel {
	raw := req.Channels
	if len(raw) == 0 {
		raw = req.Methods
	}
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[models.Channel]bool, len(raw))
	out := make([]models.Channel, 0, len(raw))
	for _, s := range raw {
		ch, err := models.ParseChannel(s)
		if err != nil || seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}

// apply merges the request into existing, or builds a new subscriber when
// existing is nil. Followed artists are always replaced. Channels, chat ID
// and phone number are only overwritten when the request carries them.
func (req *SubscribeRequest) apply(existing *models.Subscriber) *models.Subscriber {
	sub := existing
	if sub == nil {
		sub = &models.Subscriber{Email: req.Email}
	}
	sub.FollowedArtists = req.artists()
	if sub.FollowedArtists == nil {
		sub.FollowedArtists = []models.FollowedArtist{}
	}
	if chs := req.channels(); chs != nil {
		sub.Channels = chs
	}
	if req.ChatID != "" {
		sub.ChatID = req.ChatID
	}
	if req.PhoneNumber != "" {
		sub.PhoneNumber = req.PhoneNumber
	}
	return sub
}

// Subscribe handles POST /api/v1/subscribe. It answers 201 when the
// subscriber was created and 200 when an existing one was updated.
//
// @Summary Subscribe to new-release notifications
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body SubscribeRequest true "Subscription"
// @Success 200 {object} APIResponse{data=models.Subscriber} "Subscriber updated"
// @Success 201 {object} APIResponse{data=models.Subscriber} "Subscriber created"
// @Failure 400 {object} APIResponse "Validation error"
// @Failure 413 {object} APIResponse "Request body too large"
// @Router /api/v1/subscribe [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = models.NormalizeEmail(req.Email)

	existing, err := h.deps.Subscribers.Get(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrSubscriberNotFound) {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load subscriber", err)
		return
	}

	sub := req.apply(existing)
	created, err := h.deps.Subscribers.Upsert(r.Context(), sub)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to save subscriber", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("email", sub.Email).
		Bool("created", created).
		Int("artists", len(sub.FollowedArtists)).
		Msg("Subscription saved")

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondData(w, r, status, sub)
}

// GetSubscription handles GET /api/v1/subscribe?email=.
//
// @Summary Get a subscription
// @Tags Subscriptions
// @Produce json
// @Param email query string true "Subscriber email"
// @Success 200 {object} APIResponse{data=models.Subscriber} "Subscriber"
// @Failure 404 {object} APIResponse "Subscriber not found"
// @Router /api/v1/subscribe [get]
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	q := emailQuery{Email: strings.TrimSpace(r.URL.Query().Get("email"))}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	sub, err := h.deps.Subscribers.Get(r.Context(), q.Email)
	if err != nil {
		h.respondSubscriberError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, sub)
}

// UpdateTelegramID handles POST /api/v1/update-telegram-id.
//
// @Summary Set a subscriber's Telegram chat ID
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body UpdateChatIDRequest true "Email and chat ID"
// @Success 200 {object} APIResponse{data=models.Subscriber} "Subscriber updated"
// @Failure 404 {object} APIResponse "Subscriber not found"
// @Router /api/v1/update-telegram-id [post]
func (h *Handler) UpdateTelegramID(w http.ResponseWriter, r *http.Request) {
	var req UpdateChatIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.deps.Subscribers.UpdateChatID(r.Context(), req.Email, req.ChatID)
	if err != nil {
		h.respondSubscriberError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("email", sub.Email).Msg("Telegram chat ID updated")
	respondData(w, r, http.StatusOK, sub)
}

// UpdatePhoneNumber handles POST /api/v1/update-phone-number.
//
// @Summary Set a subscriber's phone number
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body UpdatePhoneRequest true "Email and E.164 phone number"
// @Success 200 {object} APIResponse{data=models.Subscriber} "Subscriber updated"
// @Failure 404 {object} APIResponse "Subscriber not found"
// @Router /api/v1/update-phone-number [post]
func (h *Handler) UpdatePhoneNumber(w http.ResponseWriter, r *http.Request) {
	var req UpdatePhoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.deps.Subscribers.UpdatePhoneNumber(r.Context(), req.Email, req.PhoneNumber)
	if err != nil {
		h.respondSubscriberError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("email", sub.Email).Msg("Phone number updated")
	respondData(w, r, http.StatusOK, sub)
}

func (h *Handler) respondSubscriberError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrSubscriberNotFound) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Subscriber not found", nil)
		return
	}
	respondError(w, r, http.StatusInternalServerError, CodeInternal, "Subscriber store error", err)
}
