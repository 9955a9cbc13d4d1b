// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/validation"
)

const defaultNotificationLimit = 100

type notificationsQuery struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Limit int    `json:"limit" validate:"min=1,max=500"`
}

// ListNotifications handles GET /api/v1/admin/notifications, newest first.
// ?email= restricts the listing to one subscriber.
//
// @Summary List sent notifications, newest first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries" default(100) minimum(1) maximum(500)
// @Param email query string false "Only this subscriber"
// @Success 200 {object} APIResponse{data=[]models.NotificationRecord} "Ledger entries"
// @Failure 401 {object} APIResponse "Admin token required"
// @Router /api/v1/admin/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := notificationsQuery{
		Email: strings.TrimSpace(r.URL.Query().Get("email")),
		Limit: defaultNotificationLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "limit must be an integer", nil)
			return
		}
		q.Limit = n
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	var (
		records []*models.NotificationRecord
		err     error
	)
	if q.Email != "" {
		records, err = h.deps.Notifications.ListBySubscriber(r.Context(), q.Email, q.Limit)
	} else {
		records, err = h.deps.Notifications.Recent(r.Context(), q.Limit)
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to read notification ledger", err)
		return
	}
	if records == nil {
		records = []*models.NotificationRecord{}
	}
	respondList(w, r, records, len(records))
}

// RunCycle handles POST /api/v1/admin/cycles. The cycle runs synchronously
// and is not canceled if the client goes away. metadata.count carries the
// number of dispatched notifications.
//
// @Summary Run a reconciliation cycle
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=models.CycleSummary} "Cycle summary"
// @Failure 409 {object} APIResponse "A cycle is already running"
// @Router /api/v1/admin/cycles [post]
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cycles.Running() {
		respondError(w, r, http.StatusConflict, CodeConflict, "A reconciliation cycle is already running", nil)
		return
	}

	summary := h.deps.Cycles.Run(context.WithoutCancel(r.Context()))
	if summary.Result == models.CycleResultOverlap {
		respondError(w, r, http.StatusConflict, CodeConflict, "A reconciliation cycle is already running", nil)
		return
	}
	dispatched := summary.Dispatched
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status:   statusSuccess,
		Data:     summary,
		Metadata: Metadata{Count: &dispatched},
	})
}

// LastCycle handles GET /api/v1/admin/cycles/last.
//
// @Summary Get the last cycle summary
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=models.CycleSummary} "Cycle summary"
// @Failure 404 {object} APIResponse "No cycle has run yet"
// @Router /api/v1/admin/cycles/last [get]
func (h *Handler) LastCycle(w http.ResponseWriter, r *http.Request) {
	last := h.deps.Cycles.LastCycle()
	if last == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "No cycle has run yet", nil)
		return
	}
	respondData(w, r, http.StatusOK, last)
}
