// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package services

import (
	"context"
	"fmt"
)

// Scheduler is the Start/Stop lifecycle of *reconcile.Scheduler.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Done() <-chan struct{}
}

// SchedulerService runs the cycle scheduler as a supervised service.
type SchedulerService struct {
	scheduler Scheduler
	name      string
}

// NewSchedulerService wraps scheduler.
func NewSchedulerService(scheduler Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: scheduler, name: "cycle-scheduler"}
}

// Serve implements suture.Service. It starts the scheduler, waits for ctx to
// be canceled and stops it, which waits for an in-flight cycle. If the
// scheduler loop exits on its own, Serve returns an error so suture restarts it.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("cycle scheduler start failed: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-s.scheduler.Done():
		if ctx.Err() == nil {
			_ = s.scheduler.Stop()
			return fmt.Errorf("cycle scheduler exited unexpectedly")
		}
	}

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("cycle scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *SchedulerService) String() string {
	return s.name
}
