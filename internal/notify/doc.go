// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package notify sends operator alerts when synchronization keeps failing.

Channels:

  - MailRelayNotifier: POSTs the alert to an HTTP mail relay. Plain-text
    messages are rendered to HTML first; "key: value" lines become table
    rows and the header colour follows the subject (red for failures,
    yellow for warnings, green otherwise). An unset endpoint, the
    API_ENDPOINT_SEND_MAIL placeholder, or an empty recipient list skips
    the send with a warning.
  - WebhookNotifier: POSTs a JSON WebhookPayload.
  - LogNotifier: writes the alert to the log.

Multi fans out to several channels and joins their errors. Notification
failures are reported to the caller for logging only; they never affect a
sync outcome.
*/
package notify
