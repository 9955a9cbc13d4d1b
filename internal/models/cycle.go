// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package models

import "time"

// Cycle outcomes.
const (
	CycleResultOK           = "ok"
	CycleResultOverlap      = "overlap"
	CycleResultStoreError   = "store_error"
	CycleResultCatalogError = "catalog_error"
	CycleResultCanceled     = "canceled"
	CycleResultPanic        = "panic"
)

// CycleSummary is the outcome of one reconciliation cycle.
type CycleSummary struct {
	CycleID    string        `json:"cycle_id"`
	Result     string        `json:"result"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`

	Subscribers int `json:"subscribers"`
	Releases    int `json:"releases"`
	Matches     int `json:"matches"`

	// Dispatched counts sends accepted by a transport.
	Dispatched int `json:"dispatched"`

	// Failed counts sends rejected by a transport or that could not be checked
	// against the ledger. They stay eligible for the next cycle.
	Failed int `json:"failed"`

	AlreadyNotified  int `json:"already_notified"`
	MissingAddress   int `json:"missing_address"`
	ChannelDisabled  int `json:"channel_disabled"`
	LedgerWriteFails int `json:"ledger_write_failures"`

	Error string `json:"error,omitempty"`
}
