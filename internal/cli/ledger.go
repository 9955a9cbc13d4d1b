// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/releasewatch/internal/app"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/store"
)

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	Email string
	Limit int
}

func newNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List sent notifications, newest first",
		Long: `List notification ledger entries, newest first.

Examples:
  releasectl notifications --limit 20
  releasectl notifications --email fan@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifications(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "only list notifications for this subscriber")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum number of entries (1-500)")

	return cmd
}

func runNotifications(opts *NotificationsOptions, cmd *cobra.Command) error {
	if opts.Limit < 1 || opts.Limit > 500 {
		return NewExitError(ExitCommandError, "--limit must be between 1 and 500")
	}
	db, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var records []*models.NotificationRecord
	if opts.Email != "" {
		records, err = db.Ledger().ListBySubscriber(cmd.Context(), opts.Email, opts.Limit)
	} else {
		records, err = db.Ledger().Recent(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read ledger", err)
	}
	if records == nil {
		records = []*models.NotificationRecord{}
	}

	return opts.output(cmd, records, func(p *printer) {
		if len(records) == 0 {
			p.line("no notifications recorded")
			return
		}
		p.row("SENT", "SUBSCRIBER", "CHANNEL", "RELEASE", "NAME")
		for _, r := range records {
			p.row(r.SentAt.Format(time.RFC3339), r.SubscriberEmail, string(r.Channel), r.ReleaseID, r.ReleaseName)
		}
	})
}

func (o *RootOptions) openStore() (*store.DB, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	db, err := app.OpenStore(cfg, o.logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store (is the server running?)", err)
	}
	return db, nil
}

func newSubscriberCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriber",
		Short: "Inspect subscribers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show EMAIL",
		Short: "Show one subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscriberShow(opts, cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every subscriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscriberList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscriberCount(opts, cmd)
		},
	})

	return cmd
}

func runSubscriberShow(opts *RootOptions, cmd *cobra.Command, email string) error {
	db, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sub, err := db.Subscribers().Get(cmd.Context(), email)
	if errors.Is(err, store.ErrSubscriberNotFound) {
		return NewExitError(ExitFailure, fmt.Sprintf("no subscriber %s", models.NormalizeEmail(email)))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read subscriber", err)
	}

	return opts.output(cmd, sub, func(p *printer) {
		p.row("email", sub.Email)
		p.row("channels", joinChannels(sub.EffectiveChannels()))
		p.row("telegram chat id", sub.ChatID)
		p.row("phone number", sub.PhoneNumber)
		p.row("created", sub.CreatedAt.Format(time.RFC3339))
		p.row("updated", sub.UpdatedAt.Format(time.RFC3339))
		p.row("followed artists", fmt.Sprint(len(sub.FollowedArtists)))
		for _, a := range sub.FollowedArtists {
			p.row("", a.ID, a.Name)
		}
	})
}

func runSubscriberList(opts *RootOptions, cmd *cobra.Command) error {
	db, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	subs, err := db.Subscribers().List(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list subscribers", err)
	}
	if subs == nil {
		subs = []*models.Subscriber{}
	}

	return opts.output(cmd, subs, func(p *printer) {
		if len(subs) == 0 {
			p.line("no subscribers")
			return
		}
		p.row("EMAIL", "ARTISTS", "CHANNELS")
		for _, s := range subs {
			p.row(s.Email, fmt.Sprint(len(s.FollowedArtists)), joinChannels(s.EffectiveChannels()))
		}
	})
}

type subscriberCount struct {
	Subscribers int `json:"subscribers"`
}

func runSubscriberCount(opts *RootOptions, cmd *cobra.Command) error {
	db, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	n, err := db.Subscribers().Count(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count subscribers", err)
	}

	return opts.output(cmd, subscriberCount{Subscribers: n}, func(p *printer) {
		p.line("%d", n)
	})
}

func joinChannels(chs []models.Channel) string {
	names := make([]string, len(chs))
	for i, ch := range chs {
		names[i] = string(ch)
	}
	return strings.Join(names, ",")
}
