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
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps session history in process memory.
//
// Description:
//
//	The default store for single-instance deployments. History is lost on
//	restart; use the badger-backed store when sessions must survive one.
//
// Thread Safety: MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string][]Exchange
	maxExchanges int
}

// NewMemoryStore creates a MemoryStore retaining maxExchanges pairs per
// session. Pass 0 for the default.
func NewMemoryStore(maxExchanges int) *MemoryStore {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	return &MemoryStore{
		sessions:     make(map[string][]Exchange),
		maxExchanges: maxExchanges,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()

	return id, nil
}

// History implements Store. Unknown sessions yield "".
func (s *MemoryStore) History(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return formatHistory(s.sessions[sessionID]), nil
}

// AddExchange implements Store. Adding to an unknown session creates it.
func (s *MemoryStore) AddExchange(_ context.Context, sessionID, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exchanges := append(s.sessions[sessionID], Exchange{Question: question, Answer: answer})
	s.sessions[sessionID] = trimExchanges(exchanges, s.maxExchanges)
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
