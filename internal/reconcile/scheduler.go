// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CycleRunner runs one reconciliation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) int
}

// SchedulerConfig holds configuration for the cycle scheduler.
type SchedulerConfig struct {
	// Interval between cycles (default 1h).
	Interval time.Duration

	// RunOnStart runs a cycle immediately when the scheduler starts.
	RunOnStart bool

	// Enabled controls whether the scheduler triggers cycles at all.
	Enabled bool
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
		Enabled:    true,
	}
}

// Scheduler triggers reconciliation cycles on a fixed interval.
type Scheduler struct {
	runner CycleRunner
	logger zerolog.Logger
	config SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new cycle scheduler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScheduler(runner CycleRunner, logger zerolog.Logger, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Scheduler{
		runner: runner,
		logger: logger.With().Str("component", "cycle-scheduler").Logger(),
		config: config,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Cycle scheduler disabled")
		go func() {
			defer close(doneCh)
			select {
			case <-stopCh:
			case <-ctx.Done():
			}
		}()
		return nil
	}

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Bool("run_on_start", s.config.RunOnStart).
		Msg("Starting cycle scheduler")

	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the scheduler loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping cycle scheduler...")
	close(stopCh)
	<-doneCh
	s.logger.Info().Msg("Cycle scheduler stopped")
	return nil
}

// Done is closed when the loop exits.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneCh
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.tick(ctx, stopCh)
	}

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, stopCh)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, stopCh <-chan struct{}) {
	// A stop request cancels the cycle in progress.
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-cycleCtx.Done():
		}
	}()

	n := s.runner.RunCycle(cycleCtx)
	s.logger.Debug().Int("dispatched", n).Msg("Scheduled cycle finished")
}
