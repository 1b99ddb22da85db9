// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package supervisor runs the daemon's long-lived services under suture v4.

# Tree

	punchsync (root)
	├── sync-layer
	│   └── sync-scheduler (internal/sync.Scheduler)
	└── api-layer
	    └── admin-http (services.HTTPServerService, if SERVER_ENABLED)

Each layer restarts its services independently with exponential backoff.
A failing admin server is restarted without touching the scheduler, and
the scheduler itself recovers panics from individual runs, so the tree
only sees failures of the loop.

# Usage

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(scheduler)
	tree.AddAPIService(services.NewHTTPServerService(srv, addr, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Supervisor events are bridged to zerolog through sutureslog and the
logging package's slog adapter.
*/
package supervisor
