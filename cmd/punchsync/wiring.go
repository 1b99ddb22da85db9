// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/delivery"
	"github.com/tomtom215/punchsync/internal/device"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/notify"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
	"github.com/tomtom215/punchsync/internal/watermark"
)

// app holds the wired components and whatever must be closed on exit.
type app struct {
	manager *syncpkg.Manager
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing resource")
		}
	}
}

func newApp(cfg *config.Config) (*app, error) {
	loc, err := cfg.Device.Location()
	if err != nil {
		return nil, err
	}

	a := &app{}

	store, err := newStore(cfg, loc)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	zk := device.NewZKClient(device.ZKConfig{
		Endpoint: cfg.Device.Endpoint(),
		Timeout:  cfg.Device.Timeout,
		Password: cfg.Device.Password,
		Location: loc,
	})

	a.manager = syncpkg.NewManager(syncpkg.Deps{
		Device:   zk,
		Store:    store,
		Delivery: newDeliveryClient(cfg),
		Notifier: newNotifier(cfg.Notify),
		Location: loc,
	}, newPolicy(cfg.Sync))

	return a, nil
}

func newStore(cfg *config.Config, loc *time.Location) (watermark.Store, error) {
	switch cfg.State.Backend {
	case "badger":
		s, err := watermark.OpenBadgerStore(cfg.State.BadgerPath, loc)
		if err != nil {
			return nil, fmt.Errorf("open watermark store: %w", err)
		}
		logging.Info().Str("path", cfg.State.BadgerPath).Msg("Using badger watermark store")
		return s, nil
	default:
		logging.Info().Str("path", cfg.Sync.StateFile).Msg("Using file watermark store")
		return watermark.NewFileStore(cfg.Sync.StateFile, loc), nil
	}
}

func newDeliveryClient(cfg *config.Config) delivery.Client {
	var client delivery.Client = delivery.NewHTTPClient(cfg.API)
	if cfg.Breaker.Enabled {
		client = delivery.NewBreakerClient(client, cfg.Breaker)
	}
	return client
}

// newNotifier always logs notifications; mail is attempted (and skipped
// with a warning when unconfigured) and the webhook is added when set.
func newNotifier(cfg config.NotifyConfig) notify.Notifier {
	n := notify.Multi{notify.LogNotifier{}, notify.NewMailRelayNotifier(cfg)}
	if cfg.WebhookURL != "" {
		n = append(n, notify.NewWebhookNotifier(cfg.WebhookURL, cfg.Entity, cfg.Timeout))
	}
	return n
}

func newPolicy(cfg config.SyncConfig) syncpkg.Policy {
	return syncpkg.Policy{
		MaxRetries:             cfg.MaxRetries,
		BaseDelay:              cfg.BaseDelay,
		RetryDelay:             cfg.RetryDelay,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}
}
