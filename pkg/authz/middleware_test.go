package authz

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/wardenhq/warden/pkg/identity"
)

func protectedRouter(engine *Engine, requirement *PermissionRequirement) *mux.Router {
	router := mux.NewRouter()
	handler := RequirePermission(engine, requirement)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	router.Handle("/customers/{customerId}/orders/{orderId}", handler)
	router.Handle("/orders", handler)
	return router
}

func requestAs(target string, ident *identity.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if ident != nil {
		req = req.WithContext(identity.WithContext(req.Context(), ident))
	}
	return req
}

func TestRequirePermissionAllows(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	router := protectedRouter(engine, &PermissionRequirement{Permission: "orders.read.all"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("/orders", identityWith("user-1", "orders.read.all")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissionForbids(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	router := protectedRouter(engine, &PermissionRequirement{Permission: "orders.read.all"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("/orders", identityWith("user-1", "billing.read.all")))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "orders.read.all",
		"denial body must not reveal the required permission")
}

func TestRequirePermissionChallengesUnauthenticated(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	router := protectedRouter(engine, &PermissionRequirement{Permission: "orders.read.all"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestRequirePermissionUnavailable(t *testing.T) {
	remote := &stubAuthority{err: errors.New("authority down")}
	engine := NewEngine(Config{Enabled: true}, WithRemoteClient(remote))
	router := protectedRouter(engine, &PermissionRequirement{
		Permission:       "records.export.bulk",
		RequireLiveCheck: true,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("/orders", identityWith("user-1")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequirePermissionResolvesRouteVars(t *testing.T) {
	remote := &stubAuthority{allowed: true}
	engine := NewEngine(Config{Enabled: true, ResourceScopedEnabled: true}, WithRemoteClient(remote))
	router := protectedRouter(engine, &PermissionRequirement{
		Permission:           "orders.read.scoped",
		ResourcePathTemplate: "customers/{customerId}/orders/{orderId}",
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("/customers/123/orders/456", identityWith("user-1")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"customers/123/orders/456"}, remote.calls)
}

func TestSourceIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:52311"
	assert.Equal(t, "10.1.2.3", SourceIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 70.41.3.18")
	assert.Equal(t, "203.0.113.7", SourceIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", SourceIP(req))
}
