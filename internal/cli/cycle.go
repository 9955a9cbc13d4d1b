// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/releasewatch/internal/app"
	"github.com/tomtom215/releasewatch/internal/models"
)

func newCycleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one reconciliation cycle and exit",
		Long: `Run a single reconciliation cycle with the server configuration: fetch
new releases, match them against every subscriber and send the notifications
that have not been sent before.

Suitable for cron when the server runs with the scheduler disabled.

Examples:
  releasectl cycle
  releasectl cycle --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(opts, cmd)
		},
	}
}

func runCycle(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	// A one-shot run never needs the embedded broker.
	cfg.Events.Embedded = false

	a, err := app.New(cfg, opts.Version, opts.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := a.Reconciler.Run(ctx)
	if err := opts.output(cmd, summary, func(p *printer) {
		p.row("cycle", summary.CycleID)
		p.row("result", summary.Result)
		p.row("duration", summary.Duration.String())
		p.row("subscribers", fmt.Sprint(summary.Subscribers))
		p.row("releases", fmt.Sprint(summary.Releases))
		p.row("matches", fmt.Sprint(summary.Matches))
		p.row("dispatched", fmt.Sprint(summary.Dispatched))
		p.row("failed", fmt.Sprint(summary.Failed))
		p.row("already notified", fmt.Sprint(summary.AlreadyNotified))
		p.row("missing address", fmt.Sprint(summary.MissingAddress))
		p.row("channel disabled", fmt.Sprint(summary.ChannelDisabled))
		if summary.Error != "" {
			p.row("error", summary.Error)
		}
	}); err != nil {
		return err
	}

	if summary.Result != models.CycleResultOK {
		return NewExitError(ExitFailure, fmt.Sprintf("cycle ended with %s", summary.Result))
	}
	return nil
}
