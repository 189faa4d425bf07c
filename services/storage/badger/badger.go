// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps dgraph-io/badger with context-aware transaction
// helpers so callers do not spread raw View/Update closures through the
// codebase.
package badger

import (
	"context"
	"fmt"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory opens a non-persistent database. Used by tests.
	InMemory bool

	// SyncWrites forces an fsync per write. Slower, safer.
	SyncWrites bool
}

// DefaultConfig returns the settings used by production stores.
func DefaultConfig() Config {
	return Config{SyncWrites: false}
}

// DB is a thin handle around a badger database.
//
// Thread Safety: DB is safe for concurrent use.
type DB struct {
	inner *dgbadger.DB
}

// OpenDB opens (creating if needed) a database per cfg.
func OpenDB(cfg Config) (*DB, error) {
	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger: config has no path")
		}
		opts = dgbadger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: opening %s: %w", cfg.Path, err)
	}
	return &DB{inner: db}, nil
}

// WithReadTxn runs fn inside a read-only transaction, honoring ctx
// cancellation before starting.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.View(fn)
}

// WithTxn runs fn inside a read-write transaction, honoring ctx
// cancellation before starting.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.Update(fn)
}

// Close releases the database. Safe to call once.
func (d *DB) Close() error {
	return d.inner.Close()
}
