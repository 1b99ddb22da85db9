// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/punchsync/internal/attendance"
	"github.com/tomtom215/punchsync/internal/delivery"
	"github.com/tomtom215/punchsync/internal/device"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/notify"
	"github.com/tomtom215/punchsync/internal/watermark"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds the retry loops.
type Policy struct {
	// MaxRetries bounds both the outer (device) and inner (delivery) loops.
	MaxRetries int

	// BaseDelay is the first inner backoff, doubled per failed attempt.
	BaseDelay time.Duration

	// RetryDelay is the flat wait between outer attempts.
	RetryDelay time.Duration

	// MaxConsecutiveFailures is the failed-run streak that triggers a
	// critical log line.
	MaxConsecutiveFailures int
}

// Deps are the manager's collaborators.
type Deps struct {
	Device   device.Client
	Store    watermark.Store
	Delivery delivery.Client
	Notifier notify.Notifier

	// Location is the device time zone used to parse textual records.
	Location *time.Location

	// Sleep and Now default to real time.
	Sleep SleepFunc
	Now   func() time.Time
}

// Manager runs synchronization attempts: read the terminal, filter against
// the watermark, deliver with retries, commit the watermark, and escalate
// to a notification once retries are exhausted.
//
// At most one run executes at a time. An overlapping Run returns
// OutcomeSkipped immediately without touching the device or the network.
type Manager struct {
	deps   Deps
	policy Policy

	// guard is held for the whole run and only ever acquired with TryLock.
	guard sync.Mutex

	// lifecycle orders draining against new runs; inflight counts runs
	// between admission and the release of guard.
	lifecycle sync.Mutex
	draining  bool
	inflight  sync.WaitGroup

	mu     sync.RWMutex
	status Status
}

// NewManager creates a manager.
func NewManager(deps Deps, policy Policy) *Manager {
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if policy.MaxConsecutiveFailures < 1 {
		policy.MaxConsecutiveFailures = 1
	}
	return &Manager{deps: deps, policy: policy}
}

// Run performs one synchronization. It never blocks on another run and
// never panics; the returned Outcome carries the result.
// After Drain has been called every Run is skipped.
func (m *Manager) Run(ctx context.Context) Outcome {
	if !m.acquire() {
		logging.Ctx(ctx).Info().Msg("Sync already in progress or shutting down, skipping this trigger")
		metrics.RecordSyncRun(string(OutcomeSkipped), 0, 0, false)
		return Outcome{Kind: OutcomeSkipped}
	}
	return m.runLocked(ctx)
}

// Trigger starts a run in the background. It returns false, without
// starting anything, when a run is already in progress or the manager is
// draining.
func (m *Manager) Trigger(ctx context.Context) bool {
	if !m.acquire() {
		return false
	}
	go m.runLocked(context.WithoutCancel(ctx))
	return true
}

// Drain stops admitting runs and blocks until the in-flight run, if any,
// has finished. The run itself is never cancelled; ctx only bounds how
// long the caller waits.
func (m *Manager) Drain(ctx context.Context) error {
	m.lifecycle.Lock()
	m.draining = true
	m.lifecycle.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire takes the run guard and registers the run with inflight.
func (m *Manager) acquire() bool {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.draining || !m.guard.TryLock() {
		return false
	}
	m.inflight.Add(1)
	return true
}

// Status returns a snapshot for reporting.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// runLocked executes a run with the guard already held and releases it on
// every exit path.
func (m *Manager) runLocked(ctx context.Context) (out Outcome) {
	defer m.inflight.Done()
	defer m.guard.Unlock()

	ctx = logging.ContextWithNewRunID(ctx)
	runID := logging.RunIDFromContext(ctx)
	start := m.deps.Now()
	m.setRunning(true)

	// attempt is the outer attempt in progress, reported if a panic
	// unwinds past run.
	var attempt int

	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered panic in sync run")
			out = m.unexpected(ctx, fmt.Errorf("%w: panic: %v", ErrUnexpected, r), attempt)
		}
		out.RunID = runID
		out.StartedAt = start
		out.Duration = m.deps.Now().Sub(start)
		m.finish(ctx, out)
	}()

	logging.Ctx(ctx).Info().Str("device", m.deps.Device.Endpoint()).Msg("Sync run started")
	return m.run(ctx, &attempt)
}

// run is the outer (device-level) retry loop.
// The current attempt number is published through current.
func (m *Manager) run(ctx context.Context, current *int) Outcome {
	log := logging.Ctx(ctx)

	var (
		lastErr  error
		lastKind OutcomeKind
		attempts int
	)
	for attempt := 1; attempt <= m.policy.MaxRetries; attempt++ {
		attempts = attempt
		*current = attempt

		batch, dropped, err := m.collect(ctx)
		if err != nil {
			if !isDeviceError(err) {
				return m.unexpected(ctx, err, attempt)
			}
			lastErr, lastKind = err, OutcomeDeviceFailure
			log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", m.policy.MaxRetries).
				Msg("Device attempt failed")
		} else if batch.Empty() {
			log.Info().Int("dropped", dropped).Msg("No new attendance records")
			return Outcome{Kind: OutcomeNoNewData, Attempts: attempt, Dropped: dropped}
		} else {
			err = m.deliver(ctx, batch)
			if err == nil {
				return m.commit(ctx, batch, attempt, dropped)
			}
			if !isDeliveryError(err) {
				return m.unexpected(ctx, err, attempt)
			}
			lastErr, lastKind = err, OutcomeDeliveryFailure
			log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", m.policy.MaxRetries).
				Msg("Delivery retries exhausted for this attempt")
		}

		if attempt < m.policy.MaxRetries {
			if serr := m.deps.Sleep(ctx, m.policy.RetryDelay); serr != nil {
				log.Warn().Err(serr).Msg("Retry wait interrupted")
				break
			}
		}
	}
	return m.exhausted(ctx, lastKind, attempts, lastErr)
}

// collect opens a device session, reads every record and builds the
// batch against the stored watermark. The session is closed before the
// batch is returned so capture is not suspended during delivery.
func (m *Manager) collect(ctx context.Context) (batch attendance.Batch, dropped int, err error) {
	err = device.WithSession(ctx, m.deps.Device, func(s *device.Session) error {
		raw, err := s.ReadAll()
		if err != nil {
			return err
		}

		wm, ok := m.deps.Store.Load(ctx)
		if ok {
			m.setWatermark(wm)
		}

		var rejected []attendance.Dropped
		batch, rejected = attendance.BuildBatch(raw, wm, ok, m.deps.Location)
		dropped = len(rejected)
		for _, d := range rejected {
			metrics.SyncEventsDropped.WithLabelValues(d.Reason).Inc()
			logging.Ctx(ctx).Warn().Str("reason", d.Reason).Str("user_id", d.Record.UserID).
				Str("line", d.Record.Line).AnErr("parse_error", d.Err).Msg("Dropped attendance record")
		}

		logging.Ctx(ctx).Info().Int("read", len(raw)).Int("new", batch.Len()).Int("dropped", dropped).
			Bool("has_watermark", ok).Msg("Attendance batch built")
		return nil
	})
	return batch, dropped, err
}

// deliver is the inner retry loop with exponential backoff.
func (m *Manager) deliver(ctx context.Context, batch attendance.Batch) error {
	log := logging.Ctx(ctx)

	var err error
	for attempt := 1; attempt <= m.policy.MaxRetries; attempt++ {
		err = m.deps.Delivery.Post(ctx, batch)
		if err == nil {
			log.Info().Int("events", batch.Len()).Int("attempt", attempt).Msg("Batch delivered")
			return nil
		}
		if !isDeliveryError(err) {
			return err
		}

		if attempt < m.policy.MaxRetries {
			delay := backoffDelay(m.policy.BaseDelay, attempt)
			log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", m.policy.MaxRetries).
				Dur("delay", delay).Msg("Delivery failed, retrying")
			if serr := m.deps.Sleep(ctx, delay); serr != nil {
				return err
			}
		}
	}
	return err
}

// commit persists the newest delivered occurred_at. A failed save is
// logged and the run still counts as delivered; the next run re-sends.
func (m *Manager) commit(ctx context.Context, batch attendance.Batch, attempt, dropped int) Outcome {
	out := Outcome{Kind: OutcomeDelivered, Attempts: attempt, Delivered: batch.Len(), Dropped: dropped}

	latest, _ := batch.MaxOccurredAt()
	out.Watermark = latest

	if err := m.deps.Store.Save(ctx, latest); err != nil {
		metrics.WatermarkSaveErrors.Inc()
		logging.Ctx(ctx).Error().Err(err).Time("watermark", latest).
			Msg("Failed to save watermark; delivered events will be sent again next run")
		return out
	}

	out.WatermarkSaved = true
	m.setWatermark(latest)
	metrics.RecordWatermark(latest)
	logging.Ctx(ctx).Info().Time("watermark", latest).Msg("Watermark committed")
	return out
}

// exhausted records a failed run and sends the single failure notification.
func (m *Manager) exhausted(ctx context.Context, kind OutcomeKind, attempts int, err error) Outcome {
	failures := m.recordFailure()

	event := logging.Ctx(ctx).Error()
	if failures >= m.policy.MaxConsecutiveFailures {
		event = logging.CriticalCtx(ctx)
	}
	event.Err(err).Str("outcome", string(kind)).Int("attempts", attempts).
		Int("consecutive_failures", failures).Msg("Sync failed after all retry attempts")

	report := failureReport{
		Endpoint:            m.deps.Device.Endpoint(),
		Stage:               stageName(kind),
		Attempts:            attempts,
		ConsecutiveFailures: failures,
		Err:                 err,
		RunID:               logging.RunIDFromContext(ctx),
		At:                  m.deps.Now(),
	}
	m.notify(ctx, SubjectSyncFailed, report.String())

	return Outcome{Kind: kind, Attempts: attempts, Err: err}
}

// unexpected handles errors outside the device and delivery taxonomy.
func (m *Manager) unexpected(ctx context.Context, err error, attempts int) Outcome {
	if !errors.Is(err, ErrUnexpected) {
		err = fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	failures := m.recordFailure()

	logging.CriticalCtx(ctx).Err(err).Int("consecutive_failures", failures).
		Msg("Unexpected error in sync run")

	m.notify(ctx, SubjectCriticalError,
		criticalReport(m.deps.Device.Endpoint(), err, logging.RunIDFromContext(ctx), m.deps.Now()))

	return Outcome{Kind: OutcomeUnexpected, Attempts: attempts, Err: err}
}

// notify sends best-effort; failures are logged only.
func (m *Manager) notify(ctx context.Context, subject, message string) {
	if m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.Notify(context.WithoutCancel(ctx), subject, message); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", subject).Msg("Failed to send notification")
	}
}

func (m *Manager) finish(ctx context.Context, out Outcome) {
	m.mu.Lock()
	s := &m.status
	s.Running = false
	s.LastOutcome = out.Kind
	s.LastRunID = out.RunID
	runAt := out.StartedAt
	s.LastRunAt = &runAt
	s.LastDelivered = out.Delivered
	s.LastError = ""
	if out.Err != nil {
		s.LastError = out.Err.Error()
	}
	if out.Success() {
		s.ConsecutiveFailures = 0
		doneAt := out.StartedAt.Add(out.Duration)
		s.LastSuccessAt = &doneAt
	}
	failures := s.ConsecutiveFailures
	m.mu.Unlock()

	metrics.SyncConsecutiveFailures.Set(float64(failures))
	metrics.RecordSyncRun(string(out.Kind), out.Duration, out.Delivered, out.Success())

	logging.Ctx(ctx).Info().Str("outcome", string(out.Kind)).Int("attempts", out.Attempts).
		Int("delivered", out.Delivered).Dur("duration", out.Duration).Msg("Sync run finished")
}

func (m *Manager) recordFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.ConsecutiveFailures++
	return m.status.ConsecutiveFailures
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.status.Running = running
	m.mu.Unlock()
}

func (m *Manager) setWatermark(t time.Time) {
	m.mu.Lock()
	m.status.Watermark = &t
	m.mu.Unlock()
}

func isDeviceError(err error) bool {
	var de *device.DeviceError
	return errors.As(err, &de)
}

func isDeliveryError(err error) bool {
	var de *delivery.DeliveryError
	return errors.As(err, &de)
}

func stageName(kind OutcomeKind) string {
	switch kind {
	case OutcomeDeviceFailure:
		return "device"
	case OutcomeDeliveryFailure:
		return "delivery"
	default:
		return string(kind)
	}
}

// sleepContext waits for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
