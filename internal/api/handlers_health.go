// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/releasewatch/internal/models"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status       string               `json:"status"`
	Version      string               `json:"version"`
	Uptime       float64              `json:"uptime_seconds"`
	Store        string               `json:"store"`
	StoreError   string               `json:"store_error,omitempty"`
	Catalog      string               `json:"catalog_breaker,omitempty"`
	Events       string               `json:"events,omitempty"`
	CycleRunning bool                 `json:"cycle_running"`
	LastCycle    *models.CycleSummary `json:"last_cycle,omitempty"`
}

type breakerReporter interface {
	BreakerState() string
}

// Health handles GET /health. It always answers 200; Status is "degraded"
// when the store cannot be reached.
//
// @Summary Get service health
// @Description Always 200. status is degraded when the store ping fails or the catalog circuit breaker is open.
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus} "Health status"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:       "healthy",
		Version:      h.version,
		Uptime:       time.Since(h.startTime).Seconds(),
		Store:        "ok",
		CycleRunning: h.deps.Cycles.Running(),
		LastCycle:    h.deps.Cycles.LastCycle(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Store = "unavailable"
		status.StoreError = err.Error()
	}
	if br, ok := h.deps.Catalog.(breakerReporter); ok {
		status.Catalog = br.BreakerState()
		if status.Catalog == "open" {
			status.Status = "degraded"
		}
	}
	if h.deps.Events != nil {
		status.Events = h.deps.Events.Transport()
	}

	respondData(w, r, http.StatusOK, status)
}

// Live handles GET /health/live.
//
// @Summary Liveness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse "Process is alive"
// @Router /health/live [get]
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready handles GET /health/ready. It answers 503 until the store responds.
//
// @Summary Readiness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse "Store reachable"
// @Failure 503 {object} APIResponse "Store unreachable"
// @Router /health/ready [get]
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Store is not ready", err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
