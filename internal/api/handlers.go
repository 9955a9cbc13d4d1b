// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/releasewatch/internal/models"
)

// SubscriberService is the subscription store as seen by the API.
type SubscriberService interface {
	Upsert(ctx context.Context, sub *models.Subscriber) (bool, error)
	Get(ctx context.Context, email string) (*models.Subscriber, error)
	UpdateChatID(ctx context.Context, email, chatID string) (*models.Subscriber, error)
	UpdatePhoneNumber(ctx context.Context, email, phone string) (*models.Subscriber, error)
}

// NotificationLister reads the notification ledger.
type NotificationLister interface {
	Recent(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
	ListBySubscriber(ctx context.Context, email string, limit int) ([]*models.NotificationRecord, error)
}

// ArtistSearcher proxies catalog artist search.
type ArtistSearcher interface {
	SearchArtists(ctx context.Context, query string) ([]models.Artist, error)
}

// CycleTrigger runs reconciliation cycles on demand.
type CycleTrigger interface {
	Run(ctx context.Context) *models.CycleSummary
	Running() bool
	LastCycle() *models.CycleSummary
}

// Pinger reports store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API handlers. Events is optional.
type Deps struct {
	Subscribers   SubscriberService
	Notifications NotificationLister
	Catalog       ArtistSearcher
	Cycles        CycleTrigger
	Store         Pinger
	Events        interface{ Transport() string }
}

func (d *Deps) validate() error {
	switch {
	case d.Subscribers == nil:
		return errors.New("api: subscriber service is required")
	case d.Notifications == nil:
		return errors.New("api: notification lister is required")
	case d.Catalog == nil:
		return errors.New("api: artist searcher is required")
	case d.Cycles == nil:
		return errors.New("api: cycle trigger is required")
	case d.Store == nil:
		return errors.New("api: store pinger is required")
	}
	return nil
}

// Handler implements the HTTP endpoints.
type Handler struct {
	deps      Deps
	version   string
	startTime time.Time
}

// NewHandler validates deps and returns a Handler.
func NewHandler(deps Deps, version string) (*Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if version == "" {
		version = "dev"
	}
	return &Handler{deps: deps, version: version, startTime: time.Now()}, nil
}
