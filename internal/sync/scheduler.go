// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/tomtom215/punchsync/internal/logging"
)

// Runner is the orchestrator entry point driven by the scheduler.
type Runner interface {
	Run(ctx context.Context) Outcome
}

// Scheduler invokes a Runner on a fixed interval. It implements
// suture.Service.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	// fallback is slept after a recovered panic before the loop resumes.
	fallback time.Duration
	sleep    SleepFunc
}

// NewScheduler creates a scheduler. interval must be positive for Serve;
// RunOnce works with any interval.
func NewScheduler(runner Runner, interval, fallback time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		fallback: fallback,
		sleep:    sleepContext,
	}
}

// Serve runs once immediately and then on every tick until ctx is done.
// Runs get a context detached from ctx so shutdown never interrupts an
// in-flight attempt; cancellation is only checked between runs.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.tick(ctx)
		}
	}
}

// RunOnce performs a single run for interval-zero deployments.
func (s *Scheduler) RunOnce(ctx context.Context) Outcome {
	logging.Info().Msg("Running a single sync (interval is 0)")
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for suture logs.
func (s *Scheduler) String() string {
	return "sync-scheduler"
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
				Dur("retry_in", s.fallback).Msg("Scheduler tick panicked")
			_ = s.sleep(ctx, s.fallback)
		}
	}()

	out := s.runner.Run(context.WithoutCancel(ctx))
	if out.Kind == OutcomeSkipped {
		logging.Debug().Msg("Tick skipped, previous run still in progress")
	}
}
