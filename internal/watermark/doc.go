// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package watermark persists the sync high-water mark.

The watermark is the occurred_at of the newest event the backend has
accepted. It is written only after a successful delivery, so a crash
between delivery and Save re-sends events on the next run rather than
losing them.

Two backends share one document layout:

	{"last_sync": "2026-05-04T08:01:02.5+01:00"}

  - FileStore: JSON file, atomic temp-file + fsync + rename
  - BadgerStore: the same document under key "watermark:last_sync"

Load never fails: an absent, truncated or corrupt state reads as "no
watermark" and is logged. Documents without an offset, as written by
earlier deployments, are interpreted in the device time zone.
*/
package watermark
