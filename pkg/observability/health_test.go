package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckerNoDependencies(t *testing.T) {
	checker := NewHealthChecker()
	status := checker.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("empty checker status = %q, want healthy", status.Status)
	}
}

func TestHealthCheckerDegradedDependency(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddDependency("registration", func(context.Context) DependencyStatus {
		return DependencyStatus{Status: StatusDegraded, Message: "attempting"}
	})
	checker.AddDependency("redis", func(context.Context) DependencyStatus {
		return DependencyStatus{Status: StatusHealthy}
	})

	status := checker.Check(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("aggregate status = %q, want degraded", status.Status)
	}
	if status.Dependencies["registration"].Message != "attempting" {
		t.Errorf("dependency detail lost: %+v", status.Dependencies)
	}
}

func TestReadinessAlwaysOK(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddDependency("registration", func(context.Context) DependencyStatus {
		return DependencyStatus{Status: StatusDegraded, Message: "partially_registered"}
	})

	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// Degradation must not pull the pod out of rotation; the service still
	// serves claims-only authorization.
	if rec.Code != http.StatusOK {
		t.Errorf("Readiness status = %d, want 200", rec.Code)
	}

	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != StatusDegraded {
		t.Errorf("body status = %q, want degraded", body.Status)
	}
}

func TestLivenessAlwaysOK(t *testing.T) {
	checker := NewHealthChecker()
	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Liveness status = %d", rec.Code)
	}
}
