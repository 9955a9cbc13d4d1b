// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(CyclesTotal.WithLabelValues("ok"))
	RecordCycle("ok", 250*time.Millisecond)
	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues("ok")); got != before+1 {
		t.Errorf("cycles_total{ok} = %v, want %v", got, before+1)
	}
	if testutil.ToFloat64(CycleLastSuccess) == 0 {
		t.Error("last success timestamp not set")
	}
}

func TestRecordDispatch(t *testing.T) {
	tests := []struct {
		channel string
		result  string
	}{
		{"email", "sent"},
		{"chat", "failed"},
		{"sms", "accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.channel+"_"+tt.result, func(t *testing.T) {
			before := testutil.ToFloat64(DispatchesTotal.WithLabelValues(tt.channel, tt.result))
			RecordDispatch(tt.channel, tt.result, 10*time.Millisecond)
			if got := testutil.ToFloat64(DispatchesTotal.WithLabelValues(tt.channel, tt.result)); got != before+1 {
				t.Errorf("got %v, want %v", got, before+1)
			}
		})
	}
}

func TestRecordCatalogRequestStatusLabel(t *testing.T) {
	RecordCatalogRequest("new_releases", 0)
	RecordCatalogRequest("new_releases", 429)

	if testutil.ToFloat64(CatalogRequests.WithLabelValues("new_releases", "error")) < 1 {
		t.Error("expected error label for status 0")
	}
	if testutil.ToFloat64(CatalogRequests.WithLabelValues("new_releases", "429")) < 1 {
		t.Error("expected 429 label")
	}
}

func TestRecordSearchCache(t *testing.T) {
	tests := []struct {
		hit   bool
		label string
	}{
		{hit: true, label: "hit"},
		{hit: false, label: "miss"},
	}

	for _, tt := range tests {
		before := testutil.ToFloat64(CatalogSearchCache.WithLabelValues(tt.label))
		RecordSearchCache(tt.hit)
		if got := testutil.ToFloat64(CatalogSearchCache.WithLabelValues(tt.label)); got != before+1 {
			t.Errorf("RecordSearchCache(%v): %s = %v, want %v", tt.hit, tt.label, got, before+1)
		}
	}
}

func TestRecordAPIRequestHistogram(t *testing.T) {
	RecordAPIRequest("GET", "/health", 200, 5*time.Millisecond)

	m := &dto.Metric{}
	observer := HTTPRequestDuration.WithLabelValues("GET", "/health")
	if err := observer.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected at least one observation")
	}
}

func TestRecordEventPublish(t *testing.T) {
	before := testutil.ToFloat64(EventsPublished.WithLabelValues("cycle.completed", "failure"))
	RecordEventPublish("cycle.completed", errors.New("closed"))
	if got := testutil.ToFloat64(EventsPublished.WithLabelValues("cycle.completed", "failure")); got != before+1 {
		t.Errorf("got %v, want %v", got, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(HTTPActiveRequests); got != before {
		t.Errorf("gauge drifted: %v -> %v", before, got)
	}
}
