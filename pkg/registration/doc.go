// Package registration publishes a service's permission catalog to the
// authorization authority at startup.
//
// Registration is asynchronous and best-effort. The Runner waits a short
// startup delay, validates the catalog, then retries publishing with a
// capped backoff. Success is terminal; exhausting the attempt budget parks
// the service in a partially-registered state where it keeps serving with
// claims-only authorization. The StatusTracker exposes progress to health
// endpoints, which report degraded rather than unhealthy for anything short
// of full registration.
package registration
