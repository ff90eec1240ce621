package identity

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wardenhq/warden/pkg/contextkeys"
	"github.com/wardenhq/warden/pkg/observability"
)

// Extractor produces verified claims for a request. The implementation is
// the external authenticator boundary: a JWT-verification middleware, a
// trusted gateway header, or a test stub. Returning nil claims means the
// request is unauthenticated, which is not itself an error.
type Extractor func(r *http.Request) (jwt.MapClaims, error)

// WithContext attaches the identity to the context.
func WithContext(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, contextkeys.IdentityKey, ident)
}

// FromContext retrieves the identity from the context. Returns nil when the
// request was not authenticated.
func FromContext(ctx context.Context) *Identity {
	ident, ok := ctx.Value(contextkeys.IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return ident
}

// Middleware places the extracted identity on the request context. It never
// rejects requests itself: denying unauthenticated access is the decision
// engine's job, and public routes must keep working without an identity.
// Extractor failures are logged and the request proceeds anonymously.
func Middleware(extract Extractor, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extract(r)
			if err != nil {
				logger.WithError(err).
					WithField("path", r.URL.Path).
					Warn("Identity extraction failed, treating request as anonymous")
				next.ServeHTTP(w, r)
				return
			}
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithContext(r.Context(), FromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
