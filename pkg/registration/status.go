package registration

import (
	"context"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/observability"
)

// Status is the lifecycle state of catalog registration.
type Status string

const (
	// StatusPending means registration has not been attempted yet.
	StatusPending Status = "pending"

	// StatusAttempting means an attempt is in flight or retries remain.
	StatusAttempting Status = "attempting"

	// StatusRegistered is terminal: the catalog was accepted.
	StatusRegistered Status = "registered"

	// StatusPartiallyRegistered is terminal: every attempt failed, the
	// service keeps serving with claims-only authorization.
	StatusPartiallyRegistered Status = "partially_registered"

	// StatusFailed is terminal: the catalog itself was invalid, no attempt
	// was made.
	StatusFailed Status = "failed"
)

// AllStatuses enumerates every status, for one-hot gauges.
func AllStatuses() []string {
	return []string{
		string(StatusPending),
		string(StatusAttempting),
		string(StatusRegistered),
		string(StatusPartiallyRegistered),
		string(StatusFailed),
	}
}

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Status      Status
	Attempts    int
	LastAttempt time.Time
	LastErr     error
}

// StatusTracker records registration progress for health endpoints and
// diagnostics. Safe for concurrent use; the runner writes, health probes
// read.
type StatusTracker struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStatusTracker starts in StatusPending.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{snapshot: Snapshot{Status: StatusPending}}
}

// Get returns the current snapshot.
func (t *StatusTracker) Get() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Status returns just the current status.
func (t *StatusTracker) Status() Status {
	return t.Get().Status
}

func (t *StatusTracker) recordAttempt(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Attempts++
	t.snapshot.LastAttempt = time.Now().UTC()
	t.snapshot.LastErr = err
}

func (t *StatusTracker) finish(s Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Status = s
	if err != nil {
		t.snapshot.LastErr = err
	}
}

// Probe adapts the tracker to a health-check dependency. Anything short of
// StatusRegistered reports degraded, never unhealthy: a service that cannot
// register still serves traffic on token claims alone, and restarting it
// would not help.
func (t *StatusTracker) Probe() observability.Probe {
	return func(ctx context.Context) observability.DependencyStatus {
		snap := t.Get()
		dep := observability.DependencyStatus{
			Status:  observability.StatusHealthy,
			Message: string(snap.Status),
		}
		if snap.Status != StatusRegistered {
			dep.Status = observability.StatusDegraded
			if snap.LastErr != nil {
				dep.Message = string(snap.Status) + ": " + snap.LastErr.Error()
			}
		}
		return dep
	}
}
