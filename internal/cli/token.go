// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/releasewatch/internal/auth"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Subject string
	TTL     time.Duration
}

type tokenOutput struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Long: `Mint an admin JWT signed with ADMIN_JWT_SECRET for the /api/v1/admin endpoints.

Examples:
  releasectl token --subject ops --ttl 1h
  curl -H "Authorization: Bearer $(releasectl token)" localhost:8000/api/v1/admin/notifications`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "releasectl", "token subject")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	if opts.TTL <= 0 {
		return NewExitError(ExitCommandError, "--ttl must be positive")
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if cfg.Security.AdminJWTSecret == "" {
		return NewExitError(ExitCommandError, "ADMIN_JWT_SECRET is not set; admin endpoints are unauthenticated")
	}

	manager, err := auth.NewJWTManager(cfg.Security.AdminJWTSecret, opts.TTL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid admin secret", err)
	}
	token, err := manager.GenerateToken(opts.Subject, auth.RoleAdmin)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to sign token", err)
	}

	out := tokenOutput{Token: token, Subject: opts.Subject, ExpiresAt: time.Now().Add(opts.TTL).UTC()}
	return opts.output(cmd, out, func(p *printer) {
		p.line("%s", token)
	})
}
