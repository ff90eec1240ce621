package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetRegistrationStatusOneHot(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	all := []string{"pending", "attempting", "registered"}

	m.SetRegistrationStatus("attempting", all)
	m.SetRegistrationStatus("registered", all)

	if v := testutil.ToFloat64(m.RegistrationStatus.WithLabelValues("registered")); v != 1 {
		t.Errorf("registered gauge = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.RegistrationStatus.WithLabelValues("attempting")); v != 0 {
		t.Errorf("attempting gauge = %v, want 0 after transition", v)
	}
	if v := testutil.ToFloat64(m.RegistrationStatus.WithLabelValues("pending")); v != 0 {
		t.Errorf("pending gauge = %v, want 0", v)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/orders", "403"))
	if count != 1 {
		t.Errorf("request counter = %v, want 1", count)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics endpoint status = %d", rec.Code)
	}
}
