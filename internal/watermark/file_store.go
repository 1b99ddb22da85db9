// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package watermark

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/punchsync/internal/logging"
)

// FileStore keeps the watermark in a small JSON document on disk.
// Writes go to a temporary file in the same directory which is fsynced
// and renamed over the target, so a crash leaves either the old or the
// new document, never a torn one.
type FileStore struct {
	path string
	loc  *time.Location
}

// NewFileStore returns a store backed by path. loc is used for documents
// written without a UTC offset.
func NewFileStore(path string, loc *time.Location) *FileStore {
	return &FileStore{path: path, loc: loc}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (time.Time, bool) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug().Str("path", s.path).Msg("No watermark file, starting from scratch")
		return time.Time{}, false
	}
	if err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Watermark file unreadable, treating as absent")
		return time.Time{}, false
	}

	t, err := decode(data, s.loc)
	if err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Watermark file corrupt, treating as absent")
		return time.Time{}, false
	}
	return t, true
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, t time.Time) error {
	data, err := encode(t)
	if err != nil {
		return &PersistenceError{Op: "encode", Location: s.path, Err: err}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return &PersistenceError{Op: "save", Location: s.path, Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()           //nolint:errcheck // already failing
			_ = os.Remove(tmp.Name()) //nolint:errcheck // already failing
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so failures here are ignored.
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()  //nolint:errcheck // best effort
		_ = d.Close() //nolint:errcheck // best effort
	}
	return nil
}
