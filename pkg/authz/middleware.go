package authz

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/httputil"
	"github.com/wardenhq/warden/pkg/identity"
	"github.com/wardenhq/warden/pkg/observability"
)

// RequirePermission guards a route with one requirement. The requirement is
// built once at route-registration time and shared across requests; per-call
// inputs (identity, route variables) all travel through the Request.
//
// Outcome mapping: unauthenticated -> 401 with a bearer challenge,
// denied -> 403, authority unavailable -> 503. Denial bodies never leak
// which permission was missing.
func RequirePermission(engine *Engine, requirement *PermissionRequirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := engine.Authorize(r.Context(), Request{
				Requirement: requirement,
				Identity:    identity.FromContext(r.Context()),
				RouteVars:   mux.Vars(r),
				SourceIP:    SourceIP(r),
				Method:      r.Method,
				Path:        r.URL.Path,
				RequestID:   observability.GetRequestID(r.Context()),
			})

			switch decision.Outcome {
			case OutcomeAllowed:
				next.ServeHTTP(w, r)
			case OutcomeUnauthenticated:
				w.Header().Set("WWW-Authenticate", "Bearer")
				httputil.WriteUnauthorized(w, "authentication required")
			case OutcomeUnavailable:
				httputil.WriteServiceUnavailable(w, "authorization temporarily unavailable")
			default:
				httputil.WriteForbidden(w, "access denied")
			}
		})
	}
}

// SourceIP extracts the client address for audit records, preferring the
// first X-Forwarded-For hop when present.
func SourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
