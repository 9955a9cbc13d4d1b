// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package cli implements releasectl, the operator command line. Commands
// open the same Badger store and catalog client as the server, so the
// store-backed commands must run while the server is stopped.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tomtom215/releasewatch/internal/config"
	"github.com/tomtom215/releasewatch/internal/logging"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string
	Verbose    bool
	Version    string

	// LoadConfig replaces config.Load, for tests.
	LoadConfig func() (*config.Config, error)

	logger zerolog.Logger
}

func (o *RootOptions) config() (*config.Config, error) {
	load := o.LoadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// NewRootCommand creates the releasectl root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version, logger: zerolog.Nop()}
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releasectl",
		Short: "Operate a Releasewatch installation",
		Long: `releasectl runs reconciliation cycles, searches the catalog and inspects
subscribers and the notification ledger using the server configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.ConfigPath != "" {
				if err := os.Setenv(config.ConfigPathEnvVar, opts.ConfigPath); err != nil {
					return WrapExitError(ExitCommandError, "failed to set config path", err)
				}
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.Init(logging.Config{
				Level:     level,
				Format:    "console",
				Timestamp: true,
				Output:    cmd.ErrOrStderr(),
			})
			opts.logger = logging.Logger()
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (overrides CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(newCycleCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newNotificationsCommand(opts))
	cmd.AddCommand(newSubscriberCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

func newVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the releasectl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.output(cmd, map[string]string{"version": opts.Version}, func(p *printer) {
				p.line("%s", opts.Version)
			})
		},
	}
}
