// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	badgerstore "github.com/AleutianAI/CourseLens/services/storage/badger"
)

// sessionKeyPrefix versions the on-disk key layout.
const sessionKeyPrefix = "session/v1/"

// DefaultSessionTTL is how long an idle session survives before Badger
// expires it.
const DefaultSessionTTL = 24 * time.Hour

var errSessionMiss = errors.New("session not found")

// BadgerStore persists session history in BadgerDB so conversations
// survive process restarts.
//
// Description:
//
//	Each session is one JSON-encoded exchange list under
//	session/v1/{id}. Every write refreshes the TTL, so a session expires
//	only after ttl of inactivity.
//
// Thread Safety: BadgerStore is safe for concurrent use.
type BadgerStore struct {
	db           *badgerstore.DB
	ttl          time.Duration
	maxExchanges int
	logger       *slog.Logger
}

// NewBadgerStore creates a BadgerStore over db.
//
// Inputs:
//   - db: Open database handle. The store does not close it.
//   - ttl: Idle expiry for sessions. 0 uses DefaultSessionTTL.
//   - maxExchanges: Retention bound per session. 0 uses the default.
func NewBadgerStore(db *badgerstore.DB, ttl time.Duration, maxExchanges int, logger *slog.Logger) *BadgerStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, ttl: ttl, maxExchanges: maxExchanges, logger: logger}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// Create implements Store.
func (s *BadgerStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, id, nil); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// History implements Store. Unknown and expired sessions yield "".
func (s *BadgerStore) History(ctx context.Context, sessionID string) (string, error) {
	exchanges, err := s.read(ctx, sessionID)
	if errors.Is(err, errSessionMiss) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading session history: %w", err)
	}
	return formatHistory(exchanges), nil
}

// AddExchange implements Store. Adding to an unknown session creates it.
func (s *BadgerStore) AddExchange(ctx context.Context, sessionID, question, answer string) error {
	exchanges, err := s.read(ctx, sessionID)
	if err != nil && !errors.Is(err, errSessionMiss) {
		return fmt.Errorf("loading session for append: %w", err)
	}

	exchanges = trimExchanges(append(exchanges, Exchange{Question: question, Answer: answer}), s.maxExchanges)
	if err := s.write(ctx, sessionID, exchanges); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(ctx context.Context, sessionID string) error {
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Delete(sessionKey(sessionID)); err != nil && !errors.Is(err, dgbadger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (s *BadgerStore) read(ctx context.Context, sessionID string) ([]Exchange, error) {
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errSessionMiss
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	var exchanges []Exchange
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &exchanges); err != nil {
			return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
		}
	}
	return exchanges, nil
}

func (s *BadgerStore) write(ctx context.Context, sessionID string, exchanges []Exchange) error {
	raw, err := json.Marshal(exchanges)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sessionID, err)
	}

	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(sessionKey(sessionID), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}
