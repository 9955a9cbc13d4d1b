// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package reconcile matches subscribers against the catalog's new releases
// and dispatches each (subscriber, release, channel) notification at most once.
//
// A cycle:
//  1. loads every subscriber
//  2. fetches the new-releases listing (a failure ends the cycle with zero dispatches)
//  3. for each subscriber and release, intersects followed artists with the
//     release's artists
//  4. for each selected channel with an address, skips keys already in the
//     ledger, sends, and appends a ledger record once the transport accepts
//
// A failed send writes no record, so the same notification is attempted again
// on the next cycle.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/delivery"
	"github.com/tomtom215/releasewatch/internal/logging"
	"github.com/tomtom215/releasewatch/internal/metrics"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/store"
)

// SubscriberSource lists every subscriber.
type SubscriberSource interface {
	List(ctx context.Context) ([]*models.Subscriber, error)
}

// ReleaseSource returns the current new-releases listing.
type ReleaseSource interface {
	GetNewReleases(ctx context.Context) ([]models.Release, error)
}

// Ledger is the deduplication store. Append must reject an existing key with
// store.ErrDuplicate.
type Ledger interface {
	Exists(ctx context.Context, key models.NotificationKey) (bool, error)
	Append(ctx context.Context, rec *models.NotificationRecord) error
}

// ChannelSet resolves a configured transport for a channel.
type ChannelSet interface {
	Get(name models.Channel) (delivery.Channel, bool)
}

// EventSink receives domain events. Implementations must not block for long.
type EventSink interface {
	NotificationDispatched(ctx context.Context, rec *models.NotificationRecord)
	CycleCompleted(ctx context.Context, summary *models.CycleSummary)
}

// Deps are the collaborators of a Reconciler. Events may be nil.
type Deps struct {
	Subscribers SubscriberSource
	Releases    ReleaseSource
	Ledger      Ledger
	Channels    ChannelSet
	Events      EventSink
}

// Config tunes the reconciler.
type Config struct {
	// DispatchTimeout bounds a single channel send (default 30s).
	DispatchTimeout time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{DispatchTimeout: 30 * time.Second}
}

// Reconciler runs reconciliation cycles. It is safe for concurrent use;
// overlapping cycles are rejected rather than queued.
//
// Each cycle:
//
//  1. Loads every subscriber and the current new-releases listing
//  2. Matches each release's artists against the subscriber's followed set
//  3. For every selected channel, skips triples already in the ledger or
//     lacking an address or an enabled transport
//  4. Sends the rendered message and appends a ledger record on success
//  5. Publishes the cycle summary and keeps it for LastCycle
//
// A failed send leaves no record, so the next cycle retries it.
//
// Example usage:
//
//	r, err := reconcile.New(reconcile.Deps{
//	    Subscribers: db.Subscribers(),
//	    Releases:    catalogClient,
//	    Ledger:      db.Ledger(),
//	    Channels:    registry,
//	}, reconcile.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	summary := r.Run(ctx)
type Reconciler struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	running atomic.Bool

	lastMu sync.RWMutex
	last   *models.CycleSummary
}

// New creates a Reconciler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(deps Deps, cfg Config, logger zerolog.Logger) (*Reconciler, error) {
	switch {
	case deps.Subscribers == nil:
		return nil, fmt.Errorf("reconcile: subscriber source is required")
	case deps.Releases == nil:
		return nil, fmt.Errorf("reconcile: release source is required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("reconcile: ledger is required")
	case deps.Channels == nil:
		return nil, fmt.Errorf("reconcile: channel set is required")
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}
	return &Reconciler{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "reconciler").Logger(),
		now:    time.Now,
	}, nil
}

// RunCycle runs one cycle and returns the number of notifications
// dispatched. It never fails; problems are logged and reflected in metrics.
func (r *Reconciler) RunCycle(ctx context.Context) int {
	return r.Run(ctx).Dispatched
}

// Run runs one cycle and returns its summary. A call made while another
// cycle is in progress returns immediately with result "overlap".
func (r *Reconciler) Run(ctx context.Context) *models.CycleSummary {
	summary := &models.CycleSummary{
		CycleID:   uuid.New().String(),
		StartedAt: r.now().UTC(),
	}

	if !r.running.CompareAndSwap(false, true) {
		summary.Result = models.CycleResultOverlap
		summary.FinishedAt = summary.StartedAt
		r.logger.Warn().Str("cycle_id", summary.CycleID).Msg("Reconciliation cycle already in progress, skipping")
		metrics.RecordCycle(summary.Result, 0)
		return summary
	}
	defer r.running.Store(false)

	ctx = logging.ContextWithCycleID(ctx, summary.CycleID)
	log := r.logger.With().Str("cycle_id", summary.CycleID).Logger()

	log.Info().Msg("Checking for new releases")
	r.execute(ctx, &log, summary)

	summary.FinishedAt = r.now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	metrics.RecordCycle(summary.Result, summary.Duration)

	event := log.Info()
	if summary.Result != models.CycleResultOK {
		event = log.Warn().Str("error", summary.Error)
	}
	event.
		Str("result", summary.Result).
		Int("subscribers", summary.Subscribers).
		Int("releases", summary.Releases).
		Int("matches", summary.Matches).
		Int("dispatched", summary.Dispatched).
		Int("failed", summary.Failed).
		Int("already_notified", summary.AlreadyNotified).
		Int("missing_address", summary.MissingAddress).
		Int("channel_disabled", summary.ChannelDisabled).
		Dur("duration", summary.Duration).
		Msg("Reconciliation cycle finished")

	r.setLast(summary)
	if r.deps.Events != nil {
		r.deps.Events.CycleCompleted(context.WithoutCancel(ctx), summary)
	}
	return summary
}

// Running reports whether a cycle is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// LastCycle returns a copy of the most recent completed summary, or nil.
func (r *Reconciler) LastCycle() *models.CycleSummary {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

func (r *Reconciler) setLast(s *models.CycleSummary) {
	cp := *s
	r.lastMu.Lock()
	r.last = &cp
	r.lastMu.Unlock()
}

// execute is the cycle body. A panic ends the cycle early but keeps the
// counts gathered so far.
func (r *Reconciler) execute(ctx context.Context, log *zerolog.Logger, summary *models.CycleSummary) {
	defer func() {
		if p := recover(); p != nil {
			summary.Result = models.CycleResultPanic
			summary.Error = fmt.Sprint(p)
			log.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("Reconciliation cycle panicked")
		}
	}()

	subscribers, err := r.deps.Subscribers.List(ctx)
	if err != nil {
		failCycle(ctx, summary, models.CycleResultStoreError, err)
		return
	}
	summary.Subscribers = len(subscribers)
	metrics.SubscribersTotal.Set(float64(len(subscribers)))

	releases, err := r.deps.Releases.GetNewReleases(ctx)
	if err != nil {
		failCycle(ctx, summary, models.CycleResultCatalogError, err)
		return
	}
	summary.Releases = len(releases)

	for _, sub := range subscribers {
		if sub == nil {
			continue
		}
		followed := sub.FollowedIDs()
		if len(followed) == 0 {
			continue
		}

		for i := range releases {
			rel := &releases[i]
			matched := MatchArtists(rel, followed)
			if len(matched) == 0 {
				continue
			}
			summary.Matches++

			for _, ch := range sub.EffectiveChannels() {
				if err := ctx.Err(); err != nil {
					failCycle(ctx, summary, models.CycleResultCanceled, err)
					return
				}
				r.notify(ctx, log, summary, sub, rel, matched, ch)
			}
		}
	}

	summary.Result = models.CycleResultOK
}

// MatchArtists returns the release's artist IDs that are in followed, in
// listing order. A release without artists never matches.
func MatchArtists(rel *models.Release, followed map[string]struct{}) []string {
	var matched []string
	seen := make(map[string]bool, len(rel.Artists))
	for _, id := range rel.ArtistIDs() {
		if _, ok := followed[id]; ok && !seen[id] {
			seen[id] = true
			matched = append(matched, id)
		}
	}
	return matched
}

// notify handles one (subscriber, release, channel) triple.
func (r *Reconciler) notify(
	ctx context.Context,
	log *zerolog.Logger,
	summary *models.CycleSummary,
	sub *models.Subscriber,
	rel *models.Release,
	matched []string,
	ch models.Channel,
) {
	address, ok := sub.AddressFor(ch)
	if !ok {
		summary.MissingAddress++
		log.Debug().Str("subscriber", sub.Email).Str("channel", string(ch)).Msg("No address for selected channel")
		return
	}

	transport, ok := r.deps.Channels.Get(ch)
	if !ok {
		summary.ChannelDisabled++
		log.Debug().Str("subscriber", sub.Email).Str("channel", string(ch)).Msg("Channel not enabled")
		return
	}

	key := models.NotificationKey{SubscriberEmail: sub.Email, ReleaseID: rel.ID, Channel: ch}
	exists, err := r.deps.Ledger.Exists(ctx, key)
	if err != nil {
		// Without a confirmed miss, sending could duplicate.
		summary.Failed++
		log.Warn().Err(err).Str("key", key.String()).Msg("Ledger lookup failed, skipping")
		return
	}
	if exists {
		summary.AlreadyNotified++
		return
	}

	msg, err := RenderMessage(rel, matched, address)
	if err != nil {
		summary.Failed++
		log.Error().Err(err).Str("key", key.String()).Msg("Failed to render notification")
		return
	}
	msg.CycleID = summary.CycleID

	start := r.now()
	dctx, cancel := context.WithTimeout(ctx, r.cfg.DispatchTimeout)
	res, err := transport.Send(dctx, msg)
	cancel()
	elapsed := r.now().Sub(start)

	if err != nil {
		summary.Failed++
		metrics.RecordDispatch(string(ch), "error", elapsed)
		log.Error().Err(err).Str("key", key.String()).Msg("Notification could not be sent")
		return
	}
	if res == nil || !res.Success {
		summary.Failed++
		metrics.RecordDispatch(string(ch), "failed", elapsed)
		ev := log.Warn().Str("key", key.String())
		if res != nil {
			ev = ev.Str("error_code", res.ErrorCode).
				Str("error", res.ErrorMessage).
				Bool("transient", res.IsTransient).
				Dur("retry_after", res.RetryAfter)
		}
		ev.Msg("Notification delivery failed, will retry next cycle")
		return
	}

	outcome := "sent"
	if res.Unconfirmed {
		outcome = "accepted"
	}
	metrics.RecordDispatch(string(ch), outcome, elapsed)
	summary.Dispatched++

	sentAt := res.DeliveredAt
	if sentAt.IsZero() {
		sentAt = r.now().UTC()
	}
	rec := &models.NotificationRecord{
		SubscriberEmail:  sub.Email,
		ReleaseID:        rel.ID,
		Channel:          ch,
		ReleaseName:      rel.Name,
		ReleaseURL:       rel.URL,
		ReleaseArtistIDs: rel.ArtistIDs(),
		MatchedArtistIDs: matched,
		Address:          address,
		ExternalID:       res.ExternalID,
		CycleID:          summary.CycleID,
		SentAt:           sentAt,
	}

	// The message is out; the ledger write must not be cut short by the caller.
	if err := r.deps.Ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Warn().Str("key", key.String()).Msg("Notification was recorded concurrently")
			return
		}
		summary.LedgerWriteFails++
		log.Error().Err(err).Str("key", key.String()).Msg("Notification sent but ledger write failed")
		return
	}

	log.Info().
		Str("subscriber", sub.Email).
		Str("release_id", rel.ID).
		Str("release", rel.Name).
		Str("channel", string(ch)).
		Bool("unconfirmed", res.Unconfirmed).
		Msg("Notification dispatched")

	if r.deps.Events != nil {
		r.deps.Events.NotificationDispatched(context.WithoutCancel(ctx), rec)
	}
}

// failCycle marks the cycle as ended by err. A failure caused by the caller's
// context is reported as canceled rather than as a store or catalog fault.
func failCycle(ctx context.Context, summary *models.CycleSummary, result string, err error) {
	if ctx.Err() != nil {
		result = models.CycleResultCanceled
	}
	summary.Result = result
	summary.Error = err.Error()
}
