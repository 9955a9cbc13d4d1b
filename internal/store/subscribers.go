// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/releasewatch/internal/models"
)

const subscriberKeyPrefix = "sub:"

// SubscriberStore holds one record per subscriber, keyed by normalized email.
type SubscriberStore struct {
	db *DB
}

func subscriberKey(email string) []byte {
	return []byte(subscriberKeyPrefix + models.NormalizeEmail(email))
}

// Upsert creates or replaces the subscriber identified by sub.Email.
// CreatedAt is preserved across updates; UpdatedAt is always refreshed.
// It reports whether a new record was created.
func (s *SubscriberStore) Upsert(ctx context.Context, sub *models.Subscriber) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sub.Email = models.NormalizeEmail(sub.Email)
	if sub.Email == "" {
		return false, fmt.Errorf("subscriber email is required")
	}

	created := false
	err := s.db.update(func(txn *badger.Txn) error {
		key := subscriberKey(sub.Email)

		existing, err := getSubscriber(txn, key)
		switch {
		case errors.Is(err, ErrSubscriberNotFound):
			created = true
			sub.CreatedAt = s.db.now().UTC()
		case err != nil:
			return err
		default:
			sub.CreatedAt = existing.CreatedAt
		}
		sub.UpdatedAt = s.db.now().UTC()

		return putSubscriber(txn, key, sub)
	})
	if err != nil {
		return false, fmt.Errorf("upsert subscriber: %w", err)
	}
	return created, nil
}

// Get returns the subscriber for email or ErrSubscriberNotFound.
func (s *SubscriberStore) Get(ctx context.Context, email string) (*models.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sub *models.Subscriber
	err := s.db.view(func(txn *badger.Txn) error {
		var err error
		sub, err = getSubscriber(txn, subscriberKey(email))
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateChatID sets the Telegram chat ID of an existing subscriber.
func (s *SubscriberStore) UpdateChatID(ctx context.Context, email, chatID string) (*models.Subscriber, error) {
	return s.mutate(ctx, email, func(sub *models.Subscriber) { sub.ChatID = chatID })
}

// UpdatePhoneNumber sets the SMS phone number of an existing subscriber.
func (s *SubscriberStore) UpdatePhoneNumber(ctx context.Context, email, phone string) (*models.Subscriber, error) {
	return s.mutate(ctx, email, func(sub *models.Subscriber) { sub.PhoneNumber = phone })
}

func (s *SubscriberStore) mutate(ctx context.Context, email string, fn func(*models.Subscriber)) (*models.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sub *models.Subscriber
	err := s.db.update(func(txn *badger.Txn) error {
		key := subscriberKey(email)
		var err error
		sub, err = getSubscriber(txn, key)
		if err != nil {
			return err
		}
		fn(sub)
		sub.Touch(s.db.now().UTC())
		return putSubscriber(txn, key, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// List returns every subscriber. The scan is unbounded.
func (s *SubscriberStore) List(ctx context.Context) ([]*models.Subscriber, error) {
	var subs []*models.Subscriber

	err := s.db.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(subscriberKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sub models.Subscriber
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sub)
			}); err != nil {
				return fmt.Errorf("decode subscriber %q: %w", it.Item().Key(), err)
			}
			subs = append(subs, &sub)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}

// Count returns the number of subscribers.
func (s *SubscriberStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(subscriberKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return ctx.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func getSubscriber(txn *badger.Txn, key []byte) (*models.Subscriber, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	var sub models.Subscriber
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sub)
	}); err != nil {
		return nil, fmt.Errorf("decode subscriber: %w", err)
	}
	return &sub, nil
}

func putSubscriber(txn *badger.Txn, key []byte, sub *models.Subscriber) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscriber: %w", err)
	}
	return txn.Set(key, data)
}
