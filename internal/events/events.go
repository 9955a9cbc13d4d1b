// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package events publishes Releasewatch domain events over Watermill.
//
// Two transports are supported:
//   - an in-process GoChannel pub/sub (the default)
//   - NATS core messaging, either an external server or an embedded one
//
// Publishing is best effort. The ledger is the source of truth, so a failed
// publish is logged and counted but never fails a cycle.
package events

import (
	"time"

	"github.com/tomtom215/releasewatch/internal/models"
)

// Topics. NATS uses them as subjects, prefixed by Config.SubjectPrefix.
const (
	TopicNotificationDispatched = "notification.dispatched"
	TopicCycleCompleted         = "cycle.completed"
)

// Metadata keys set on every message.
const (
	MetadataEventType = "event_type"
	MetadataCycleID   = "cycle_id"
)

// NotificationDispatched is published after a ledger record is written.
type NotificationDispatched struct {
	EventID    string                     `json:"event_id"`
	OccurredAt time.Time                  `json:"occurred_at"`
	Record     *models.NotificationRecord `json:"record"`
}

// CycleCompleted is published at the end of every reconciliation cycle,
// including failed ones.
type CycleCompleted struct {
	EventID    string               `json:"event_id"`
	OccurredAt time.Time            `json:"occurred_at"`
	Summary    *models.CycleSummary `json:"summary"`
}
