// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package logging provides the process-wide zerolog logger for punchsync.
//
// Every component logs through the package-level helpers so that output
// format, level and the optional log file are configured in one place:
//
//	if err := logging.Init(logging.Config{Level: "info", Format: "json", File: "/var/log/punchsync.log"}); err != nil {
//	    logging.Warn().Err(err).Msg("Log file unavailable, logging to stderr only")
//	}
//
//	logging.Info().Str("device", addr).Msg("Connected to terminal")
//
// # Run correlation
//
// The sync orchestrator tags each run with a short run id. Use Ctx to pick
// it up:
//
//	ctx = logging.ContextWithNewRunID(ctx)
//	logging.Ctx(ctx).Info().Int("events", n).Msg("Batch delivered")
//
// # Severity
//
// Critical() emits an error-level event with severity=critical. It marks
// conditions an operator has to look at: an unexpected failure inside a
// run, or the consecutive-failure threshold being reached.
//
// # slog bridge
//
// SlogHandler adapts zerolog to log/slog for libraries such as sutureslog.
//
// Environment (read by internal/config, not by this package):
//
//	LOG_LEVEL   trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  json, console (default: json)
//	LOG_FILE    optional append-only copy of the JSON log
package logging
