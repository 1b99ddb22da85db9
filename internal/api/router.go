// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// SyncController is the part of sync.Manager the admin API drives.
type SyncController interface {
	Status() syncpkg.Status
	Trigger(ctx context.Context) bool
}

// RouterConfig configures the admin router.
type RouterConfig struct {
	// TriggerRateLimit is the number of manual triggers accepted per
	// client IP per TriggerWindow.
	TriggerRateLimit int
	TriggerWindow    time.Duration
}

// Router serves the admin endpoints.
type Router struct {
	handler *Handler
	config  RouterConfig
}

// NewRouter creates a router. Zero config values default to 6 triggers
// per minute.
func NewRouter(ctrl SyncController, config RouterConfig) *Router {
	if config.TriggerRateLimit <= 0 {
		config.TriggerRateLimit = 6
	}
	if config.TriggerWindow <= 0 {
		config.TriggerWindow = time.Minute
	}
	return &Router{
		handler: NewHandler(ctrl),
		config:  config,
	}
}

// Setup builds the chi route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog())

	r.Get("/healthz", router.handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Get("/status", router.handler.SyncStatus)
		r.With(httprate.LimitByIP(router.config.TriggerRateLimit, router.config.TriggerWindow)).
			Post("/trigger", router.handler.SyncTrigger)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
