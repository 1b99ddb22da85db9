// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/punchsync/internal/api"
	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/supervisor"
	"github.com/tomtom215/punchsync/internal/supervisor/services"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// panicFallback is slept after a scheduler tick panics.
const panicFallback = time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	if err := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		File:      cfg.Logging.File,
		Output:    os.Stderr,
	}); err != nil {
		logging.Warn().Err(err).Str("file", cfg.Logging.File).Msg("Log file unavailable, logging to stderr only")
	}
	defer func() {
		if err := logging.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing log file")
		}
	}()

	logConfig(cfg)

	app, err := newApp(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer app.Close()

	scheduler := syncpkg.NewScheduler(app.manager, cfg.Sync.Interval, panicFallback)

	// Interval 0: single run, exit status reflects the outcome.
	if cfg.Sync.Interval == 0 {
		out := scheduler.RunOnce(context.Background())
		logging.Info().Str("outcome", string(out.Kind)).Msg("Single sync run finished")
		if out.Failed() {
			return 1
		}
		return 0
	}

	return serve(cfg, app, scheduler)
}

// serve runs the scheduler and the optional admin server under the
// supervisor tree until SIGINT/SIGTERM. A second signal stops waiting for
// the in-flight run.
func serve(cfg *config.Config, app *app, scheduler *syncpkg.Scheduler) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainCtx, abandon := context.WithCancel(context.Background())
	defer abandon()

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(scheduler)

	if cfg.Server.Enabled {
		router := api.NewRouter(app.manager, api.RouterConfig{
			TriggerRateLimit: cfg.Server.TriggerRateLimit,
			TriggerWindow:    time.Minute,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router.Setup(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(srv, srv.Addr, tree.Config().ShutdownTimeout))
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()

		sig = <-sigCh
		logging.Warn().Str("signal", sig.String()).Msg("Second signal, abandoning in-flight sync run")
		abandon()
	}()

	logging.Info().Dur("interval", cfg.Sync.Interval).Bool("admin_http", cfg.Server.Enabled).Msg("Starting supervisor tree")
	return supervise(ctx, drainCtx, tree, app.manager)
}

// drainer is the part of sync.Manager that shutdown waits on.
type drainer interface {
	Drain(ctx context.Context) error
}

// supervise runs tree until ctx ends, then waits for the in-flight sync
// run before returning. The tree's shutdown timeout does not bound that
// wait; only drainCtx does.
func supervise(ctx, drainCtx context.Context, tree *supervisor.SupervisorTree, runs drainer) int {
	errCh := tree.ServeBackground(ctx)

	exitCode := 0
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		exitCode = 1
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Waiting for in-flight sync run to finish")
	if err := runs.Drain(drainCtx); err != nil {
		logging.Error().Err(err).Msg("Shutdown abandoned an in-flight sync run")
		exitCode = 1
	}

	logging.Info().Msg("Shutdown complete")
	return exitCode
}

// logConfig logs the effective configuration. Credentials are never logged.
func logConfig(cfg *config.Config) {
	logging.Info().
		Str("device", cfg.Device.Endpoint()).
		Dur("device_timeout", cfg.Device.Timeout).
		Str("timezone", cfg.Device.Timezone).
		Str("api_url", cfg.API.URL).
		Dur("api_timeout", cfg.API.Timeout).
		Dur("interval", cfg.Sync.Interval).
		Int("max_retries", cfg.Sync.MaxRetries).
		Dur("base_delay", cfg.Sync.BaseDelay).
		Dur("retry_delay", cfg.Sync.RetryDelay).
		Str("state_backend", cfg.State.Backend).
		Bool("mail_configured", cfg.Notify.MailConfigured()).
		Int("recipients", len(cfg.Notify.Recipients)).
		Bool("webhook", cfg.Notify.WebhookURL != "").
		Bool("breaker", cfg.Breaker.Enabled).
		Msg("Configuration loaded")
}
