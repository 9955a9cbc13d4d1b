// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/releasewatch/internal/models"
)

const (
	ledgerKeyPrefix     = "ntf:"
	ledgerTimeKeyPrefix = "ntf_time:"

	// appendConflictRetries bounds retries when two transactions race on the
	// same key. The retry observes the winner's write and returns ErrDuplicate.
	appendConflictRetries = 3
)

// Ledger is the append-only notification record, keyed by
// (subscriber email, release id, channel).
//
// Each record is stored under two keys:
//   - ntf:<email>\x00<release id>\x00<channel> holds the JSON record
//   - ntf_time:<sent_at nanos>:<primary key> points back at it for
//     newest-first listing
//
// Append writes both in one transaction and never overwrites; a second
// append for the same key returns ErrDuplicate.
//
// Example usage:
//
//	ledger := db.Ledger()
//	key := models.NotificationKey{SubscriberEmail: email, ReleaseID: id, Channel: models.ChannelEmail}
//	if seen, err := ledger.Exists(ctx, key); err != nil || seen {
//	    return err
//	}
//	// ... send ...
//	if err := ledger.Append(ctx, rec); errors.Is(err, store.ErrDuplicate) {
//	    // another cycle recorded it first
//	}
type Ledger struct {
	db *DB
}

func ledgerKey(k models.NotificationKey) []byte {
	key := make([]byte, 0, len(ledgerKeyPrefix)+len(k.SubscriberEmail)+len(k.ReleaseID)+len(k.Channel)+2)
	key = append(key, ledgerKeyPrefix...)
	key = append(key, models.NormalizeEmail(k.SubscriberEmail)...)
	key = append(key, 0)
	key = append(key, k.ReleaseID...)
	key = append(key, 0)
	key = append(key, k.Channel...)
	return key
}

func ledgerSubscriberPrefix(email string) []byte {
	p := append([]byte(ledgerKeyPrefix), models.NormalizeEmail(email)...)
	return append(p, 0)
}

func ledgerTimeKey(rec *models.NotificationRecord, primary []byte) []byte {
	return append([]byte(fmt.Sprintf("%s%020d:", ledgerTimeKeyPrefix, rec.SentAt.UnixNano())), primary...)
}

// Exists reports whether a record for key has been appended.
func (l *Ledger) Exists(ctx context.Context, key models.NotificationKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := l.db.view(func(txn *badger.Txn) error {
		_, err := txn.Get(ledgerKey(key))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return found, nil
}

// Append inserts rec. The existence check and the insert run in one
// read-write transaction, so concurrent appends of the same key resolve to
// exactly one record and ErrDuplicate for every other caller.
func (l *Ledger) Append(ctx context.Context, rec *models.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SubscriberEmail == "" || rec.ReleaseID == "" || !rec.Channel.Valid() {
		return fmt.Errorf("ledger append: incomplete key %s", rec.Key())
	}
	rec.SubscriberEmail = models.NormalizeEmail(rec.SubscriberEmail)
	if rec.SentAt.IsZero() {
		rec.SentAt = l.db.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	primary := ledgerKey(rec.Key())

	for attempt := 0; ; attempt++ {
		err = l.db.update(func(txn *badger.Txn) error {
			_, err := txn.Get(primary)
			if err == nil {
				return ErrDuplicate
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(primary, data); err != nil {
				return err
			}
			return txn.Set(ledgerTimeKey(rec, primary), primary)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < appendConflictRetries {
			continue
		}
		break
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicate):
		return ErrDuplicate
	default:
		return fmt.Errorf("ledger append: %w", err)
	}
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	if limit <= 0 {
		return []*models.NotificationRecord{}, nil
	}
	records := make([]*models.NotificationRecord, 0, limit)

	err := l.db.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(ledgerTimeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seeking past the end of the prefix positions a reverse iterator on
		// the newest index entry.
		seek := append([]byte(ledgerTimeKeyPrefix), 0xFF)
		for it.Seek(seek); it.Valid() && len(records) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := getRecord(txn, primary)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}
	return records, nil
}

// ListBySubscriber returns up to limit records for email, newest first.
// A limit of zero or less returns every record.
func (l *Ledger) ListBySubscriber(ctx context.Context, email string, limit int) ([]*models.NotificationRecord, error) {
	var records []*models.NotificationRecord

	err := l.db.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ledgerSubscriberPrefix(email)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec models.NotificationRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode notification: %w", err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SentAt.After(records[j].SentAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func getRecord(txn *badger.Txn, primary []byte) (*models.NotificationRecord, error) {
	item, err := txn.Get(primary)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	var rec models.NotificationRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &rec, nil
}
