// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package store persists subscribers and the notification ledger in BadgerDB.
//
// Key layout (one Badger instance, namespaced by prefix):
//
//	sub:<email>                                  -> Subscriber JSON
//	ntf:<email>\x00<release_id>\x00<channel>     -> NotificationRecord JSON
//	ntf_time:<unix_nano, 20 digits>:<ntf key>    -> ntf key (newest-first index)
//
// The ledger key is the deduplication key, so at most one record can ever
// exist per (subscriber, release, channel).
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var (
	// ErrSubscriberNotFound is returned when no subscriber exists for an email.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrDuplicate is returned by Append when the ledger already holds the key.
	ErrDuplicate = errors.New("notification already recorded")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// Config configures the Badger instance.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and the CLI dry-run mode.
	InMemory bool

	// SyncWrites fsyncs every commit. The ledger is an audit trail, so the
	// default is true.
	SyncWrites bool

	// GCInterval is how often value log GC runs while the store is supervised.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64
}

// DB owns the Badger handle and exposes the subscriber store and ledger views.
type DB struct {
	db     *badger.DB
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the Badger database described by cfg.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("store path is required unless in_memory is set")
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	opts.ValueLogFileSize = 64 << 20
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Store opened")

	return &DB{db: db, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Close flushes and closes the database. Calling Close twice is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// Ping reports whether the database is open and readable.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.View(func(txn *badger.Txn) error { return nil })
}

// Subscribers returns the subscriber store view.
func (d *DB) Subscribers() *SubscriberStore {
	return &SubscriberStore{db: d}
}

// Ledger returns the notification ledger view.
func (d *DB) Ledger() *Ledger {
	return &Ledger{db: d}
}

// Serve runs value log GC on an interval until ctx is canceled.
// It implements suture.Service so the supervisor tree owns the loop.
func (d *DB) Serve(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runGC()
		}
	}
}

// String implements fmt.Stringer for suture service naming.
func (d *DB) String() string {
	return "badger-store"
}

func (d *DB) runGC() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.cfg.InMemory {
		return
	}
	// RunValueLogGC returns ErrNoRewrite when there is nothing to collect.
	for {
		if err := d.db.RunValueLogGC(d.cfg.GCRatio); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				d.logger.Warn().Err(err).Msg("Value log GC failed")
			}
			return
		}
	}
}

func (d *DB) update(fn func(txn *badger.Txn) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.Update(fn)
}

func (d *DB) view(fn func(txn *badger.Txn) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.View(fn)
}
