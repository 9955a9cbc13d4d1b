// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig("test-open")
	cfg.Timeout = time.Hour
	b := NewBreaker(cfg)

	for i := 0; i < int(cfg.MinRequests); i++ {
		if err := b.Execute(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}

	if b.State() != "open" {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if called {
		t.Error("fn should not run while open")
	}
	if !IsOpen(err) {
		t.Errorf("err = %v, want open-state rejection", err)
	}
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	t.Parallel()

	errPermanent := errors.New("bad request")
	cfg := DefaultBreakerConfig("test-classify")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errPermanent) }
	b := NewBreaker(cfg)

	for i := 0; i < 20; i++ {
		_ = b.Execute(func() error { return errPermanent })
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerStaysClosedBelowMinimum(t *testing.T) {
	t.Parallel()

	b := NewBreaker(DefaultBreakerConfig("test-min"))
	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return errUpstream })
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}
