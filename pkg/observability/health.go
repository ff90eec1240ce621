package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Probe reports the health of one dependency.
type Probe func(ctx context.Context) DependencyStatus

// HealthChecker aggregates dependency probes into liveness/readiness
// endpoints. An authorization sidecar is never "unhealthy" just because the
// authority is unreachable: the service can still serve with locally-held
// claims, so probes report degraded at worst and readiness always returns
// 200 once the process is up.
type HealthChecker struct {
	mu     sync.Mutex
	probes map[string]Probe
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{probes: make(map[string]Probe)}
}

// AddDependency registers a named dependency probe.
func (h *HealthChecker) AddDependency(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// Liveness returns a simple liveness probe (always 200 if the server runs).
func (h *HealthChecker) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness reports the aggregate status with per-dependency detail.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// Check runs every registered probe.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.Lock()
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	probes := make([]Probe, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		probes = append(probes, h.probes[name])
	}
	h.mu.Unlock()

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus, len(names)),
	}

	for i, name := range names {
		dep := probes[i](ctx)
		status.Dependencies[name] = dep
		if dep.Status == StatusDegraded {
			status.Status = StatusDegraded
		}
	}

	return status
}
