package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/observability"
)

const (
	// DefaultStartupDelay lets the HTTP listener come up before the first
	// registration attempt so readiness probes are not racing the publish.
	DefaultStartupDelay = 2 * time.Second

	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 10
)

// backoffSchedule is the wait after each failed attempt. Attempts past the
// schedule's length hold the final interval.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
}

// RunnerConfig tunes the background registration loop. Zero values take the
// defaults.
type RunnerConfig struct {
	StartupDelay time.Duration
	MaxAttempts  int

	// Backoff overrides the wait after a failed attempt, mainly for tests.
	// Nil uses the default schedule.
	Backoff func(attempt int) time.Duration

	// AuditLog receives a record of the terminal registration outcome.
	// Nil disables the record.
	AuditLog audit.Logger
}

// Runner drives catalog registration in the background so a slow or down
// authority never delays service startup. Registration happening at all is
// best-effort: after the attempt budget is spent the runner parks in
// StatusPartiallyRegistered and the service keeps serving on token claims.
type Runner struct {
	registrar *Registrar
	tracker   *StatusTracker
	cfg       RunnerConfig
	metrics   *observability.Metrics
	logger    *observability.Logger
	done      chan struct{}
}

// NewRunner wires a runner. metrics may be nil.
func NewRunner(registrar *Registrar, tracker *StatusTracker, cfg RunnerConfig, metrics *observability.Metrics, logger *observability.Logger) *Runner {
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = DefaultStartupDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoffFor
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Runner{
		registrar: registrar,
		tracker:   tracker,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the registration loop. The context cancels any pending
// wait; cancellation mid-backoff abandons retries without changing the
// tracker's terminal state.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		defer observability.RecoverPanic(r.logger, "registration runner")
		r.run(ctx)
	}()
}

// Done closes when the runner has reached a terminal state or was cancelled.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) run(ctx context.Context) {
	if err := r.registrar.Validate(); err != nil {
		r.logger.WithError(err).Error("Permission catalog invalid, registration aborted")
		r.setStatus(StatusFailed, err)
		return
	}

	if !r.sleep(ctx, r.cfg.StartupDelay) {
		return
	}

	r.setStatus(StatusAttempting, nil)

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.registrar.Publish(ctx)
		r.tracker.recordAttempt(err)

		if err == nil {
			r.observeAttempt("success")
			r.setStatus(StatusRegistered, nil)
			r.auditOutcome(ctx, audit.EventStatusSuccess, attempt, nil)
			r.logger.WithField("attempt", attempt).Info("Permission catalog registered")
			return
		}
		lastErr = err
		r.observeAttempt("failure")
		r.logger.WithError(err).
			WithField("attempt", attempt).
			WithField("max_attempts", r.cfg.MaxAttempts).
			Warn("Permission catalog registration attempt failed")

		if ctx.Err() != nil {
			return
		}
		if attempt < r.cfg.MaxAttempts && !r.sleep(ctx, r.cfg.Backoff(attempt)) {
			return
		}
	}

	r.setStatus(StatusPartiallyRegistered, lastErr)
	r.auditOutcome(ctx, audit.EventStatusFailure, r.cfg.MaxAttempts, lastErr)
	r.logger.WithError(lastErr).
		WithField("attempts", r.cfg.MaxAttempts).
		Error("Permission catalog registration exhausted retries, serving with claims-only authorization")
}

// backoffFor returns the wait after the given 1-based failed attempt.
func backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// sleep waits for d or context cancellation, reporting whether the full
// wait elapsed.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) setStatus(s Status, err error) {
	r.tracker.finish(s, err)
	if r.metrics != nil {
		r.metrics.SetRegistrationStatus(string(s), AllStatuses())
	}
}

// auditOutcome records the terminal registration result.
func (r *Runner) auditOutcome(ctx context.Context, status audit.EventStatus, attempts int, cause error) {
	if r.cfg.AuditLog == nil {
		return
	}
	event := audit.NewEvent(audit.EventTypeRegistration, status)
	event.Message = fmt.Sprintf("catalog %q after %d attempt(s)", r.registrar.catalog.ServiceName, attempts)
	if cause != nil {
		event.Message += ": " + cause.Error()
	}
	if err := r.cfg.AuditLog.Log(ctx, event); err != nil {
		r.logger.WithError(err).Warn("Failed to write registration audit record")
	}
}

func (r *Runner) observeAttempt(outcome string) {
	if r.metrics != nil {
		r.metrics.RegistrationAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}
