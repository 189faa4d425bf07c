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
	"testing"

	badgerstore "github.com/AleutianAI/CourseLens/services/storage/badger"
)

// storeUnderTest runs the shared Store contract tests against any
// implementation.
func storeUnderTest(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	id, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty session ID")
	}

	history, err := s.History(ctx, id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if history != "" {
		t.Errorf("History(new session) = %q, want empty", history)
	}

	if err := s.AddExchange(ctx, id, "What is MCP?", "A protocol."); err != nil {
		t.Fatalf("AddExchange() error = %v", err)
	}

	history, err = s.History(ctx, id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := "User: What is MCP?\nAssistant: A protocol."
	if history != want {
		t.Errorf("History() = %q, want %q", history, want)
	}

	// Retention bound of 2: the third exchange evicts the first.
	if err := s.AddExchange(ctx, id, "q2", "a2"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddExchange(ctx, id, "q3", "a3"); err != nil {
		t.Fatal(err)
	}
	history, err = s.History(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	want = "User: q2\nAssistant: a2\nUser: q3\nAssistant: a3"
	if history != want {
		t.Errorf("History() after eviction = %q, want %q", history, want)
	}

	if err := s.Clear(ctx, id); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	history, err = s.History(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if history != "" {
		t.Errorf("History(cleared session) = %q, want empty", history)
	}

	// Unknown sessions are empty, not errors.
	history, err = s.History(ctx, "no-such-session")
	if err != nil {
		t.Fatalf("History(unknown) error = %v", err)
	}
	if history != "" {
		t.Errorf("History(unknown) = %q, want empty", history)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	storeUnderTest(t, NewMemoryStore(2))
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	a, _ := s.Create(ctx)
	b, _ := s.Create(ctx)
	if a == b {
		t.Fatalf("Create() returned duplicate IDs: %q", a)
	}

	if err := s.AddExchange(ctx, a, "question", "answer"); err != nil {
		t.Fatal(err)
	}
	history, err := s.History(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if history != "" {
		t.Errorf("History(other session) = %q, want empty", history)
	}
}

func TestBadgerStore_Contract(t *testing.T) {
	db, err := badgerstore.OpenDB(badgerstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	storeUnderTest(t, NewBadgerStore(db, 0, 2, nil))
}

func TestBadgerStore_AddExchangeCreatesSession(t *testing.T) {
	db, err := badgerstore.OpenDB(badgerstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	s := NewBadgerStore(db, 0, 0, nil)

	if err := s.AddExchange(ctx, "fresh-id", "q", "a"); err != nil {
		t.Fatalf("AddExchange() error = %v", err)
	}
	history, err := s.History(ctx, "fresh-id")
	if err != nil {
		t.Fatal(err)
	}
	if history != "User: q\nAssistant: a" {
		t.Errorf("History() = %q", history)
	}
}
