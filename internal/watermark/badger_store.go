// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/punchsync/internal/logging"
)

// badgerKey holds the watermark document inside BadgerDB.
var badgerKey = []byte("watermark:last_sync")

// BadgerStore keeps the watermark in BadgerDB. It stores the same JSON
// document as FileStore under a single key, written with SyncWrites.
type BadgerStore struct {
	db     *badger.DB
	loc    *time.Location
	owned  bool
	source string
}

// OpenBadgerStore opens (or creates) a BadgerDB at path.
func OpenBadgerStore(path string, loc *time.Location) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.NumVersionsToKeep = 1

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", path).Msg("Watermark store opened")
	return &BadgerStore{db: db, loc: loc, owned: true, source: path}, nil
}

// NewBadgerStore wraps an already open database. Close does not close db.
func NewBadgerStore(db *badger.DB, loc *time.Location) *BadgerStore {
	return &BadgerStore{db: db, loc: loc, source: "badger"}
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context) (time.Time, bool) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		logging.Debug().Str("path", s.source).Msg("No watermark stored, starting from scratch")
		return time.Time{}, false
	}
	if err != nil {
		logging.Warn().Err(err).Str("path", s.source).Msg("Watermark read failed, treating as absent")
		return time.Time{}, false
	}

	t, err := decode(data, s.loc)
	if err != nil {
		logging.Warn().Err(err).Str("path", s.source).Msg("Stored watermark corrupt, treating as absent")
		return time.Time{}, false
	}
	return t, true
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, t time.Time) error {
	data, err := encode(t)
	if err != nil {
		return &PersistenceError{Op: "encode", Location: s.source, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey, data))
	})
	if err != nil {
		return &PersistenceError{Op: "save", Location: s.source, Err: err}
	}
	return nil
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
