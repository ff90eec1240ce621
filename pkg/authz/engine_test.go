package authz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/authority"
	"github.com/wardenhq/warden/pkg/identity"
	"github.com/wardenhq/warden/pkg/permissions"
)

// stubAuthority records check calls and replies from a script.
type stubAuthority struct {
	mu      sync.Mutex
	allowed bool
	err     error
	calls   []string // resolved resource paths, in call order
}

func (s *stubAuthority) CheckPermission(_ context.Context, _, _, resourcePath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, resourcePath)
	return s.allowed, s.err
}

func (s *stubAuthority) GetUserPermissions(context.Context, string) []string { return nil }
func (s *stubAuthority) CheckPermissionsBulk(context.Context, string, []authority.CheckRequest) map[string]bool {
	return nil
}
func (s *stubAuthority) RegisterPermissions(context.Context, string, []permissions.PermissionRegistration) error {
	return nil
}
func (s *stubAuthority) RegisterRoles(context.Context, string, []permissions.RoleRegistration) error {
	return nil
}

// capturingAuditLogger retains every event for assertions.
type capturingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (c *capturingAuditLogger) Log(_ context.Context, event *audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingAuditLogger) Close() error { return nil }

func identityWith(sub string, perms ...string) *identity.Identity {
	claims := jwt.MapClaims{"permissions": perms}
	if sub != "" {
		claims["sub"] = sub
	}
	return identity.FromClaims(claims)
}

func TestAuthorizeLocalMatch(t *testing.T) {
	remote := &stubAuthority{}
	engine := NewEngine(DefaultConfig(), WithRemoteClient(remote))

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
		Identity:    identityWith("user-1", "orders.*"),
	})

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonLocalMatch, d.Reason)
	assert.False(t, d.RemoteChecked)
	assert.Empty(t, remote.calls, "local match must not reach the authority")
}

func TestAuthorizeInsufficientClaims(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.delete.any"},
		Identity:    identityWith("user-1", "orders.read.all"),
	})

	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.Equal(t, ReasonInsufficient, d.Reason)
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
	})
	assert.Equal(t, OutcomeUnauthenticated, d.Outcome)
	assert.Equal(t, ReasonUnauthenticated, d.Reason)
}

func TestAuthorizeMissingPrincipal(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
		Identity:    identityWith("", "orders.read.all"),
	})
	assert.Equal(t, OutcomeUnauthenticated, d.Outcome)
	assert.Equal(t, ReasonNoPrincipal, d.Reason)
}

func TestAuthorizeDisabled(t *testing.T) {
	engine := NewEngine(Config{Enabled: false})

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
	})
	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonDisabled, d.Reason)
}

func TestAuthorizeLiveCheckAllowed(t *testing.T) {
	remote := &stubAuthority{allowed: true}
	engine := NewEngine(DefaultConfig(), WithRemoteClient(remote))

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{
			Permission:       "records.export.bulk",
			RequireLiveCheck: true,
		},
		Identity: identityWith("user-1"),
	})

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonRemoteAllowed, d.Reason)
	assert.True(t, d.RemoteChecked)
	require.Len(t, remote.calls, 1)
}

func TestAuthorizeLiveCheckDenied(t *testing.T) {
	remote := &stubAuthority{allowed: false}
	engine := NewEngine(DefaultConfig(), WithRemoteClient(remote))

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{
			Permission:       "records.export.bulk",
			RequireLiveCheck: true,
		},
		Identity: identityWith("user-1"),
	})

	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.Equal(t, ReasonRemoteDenied, d.Reason)
	assert.True(t, d.RemoteChecked)
}

func TestAuthorizeResourceScopedGating(t *testing.T) {
	requirement := &PermissionRequirement{
		Permission:           "orders.read.scoped",
		ResourcePathTemplate: "customers/{customerId}/orders/{orderId}",
	}
	routeVars := map[string]string{"customerId": "123", "orderId": "456"}

	// Disabled: template alone does not warrant a remote check.
	remote := &stubAuthority{allowed: true}
	engine := NewEngine(Config{Enabled: true, ResourceScopedEnabled: false}, WithRemoteClient(remote))
	d := engine.Authorize(context.Background(), Request{
		Requirement: requirement,
		Identity:    identityWith("user-1"),
		RouteVars:   routeVars,
	})
	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.Empty(t, remote.calls)

	// Enabled: the check goes out with the resolved path.
	engine = NewEngine(Config{Enabled: true, ResourceScopedEnabled: true}, WithRemoteClient(remote))
	d = engine.Authorize(context.Background(), Request{
		Requirement: requirement,
		Identity:    identityWith("user-1"),
		RouteVars:   routeVars,
	})
	assert.True(t, d.Allowed())
	assert.Equal(t, "customers/123/orders/456", d.ResolvedPath)
	require.Len(t, remote.calls, 1)
	assert.Equal(t, "customers/123/orders/456", remote.calls[0])
}

func TestAuthorizeFailClosed(t *testing.T) {
	remote := &stubAuthority{err: errors.New("authority timeout")}
	engine := NewEngine(Config{Enabled: true}, WithRemoteClient(remote))

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "records.export.bulk", RequireLiveCheck: true},
		Identity:    identityWith("user-1"),
	})

	assert.Equal(t, OutcomeUnavailable, d.Outcome)
	assert.Equal(t, ReasonUnavailable, d.Reason)
	assert.False(t, d.Allowed())
}

func TestAuthorizeFailOpen(t *testing.T) {
	remote := &stubAuthority{err: errors.New("authority timeout")}
	engine := NewEngine(Config{Enabled: true, FailOpenOnError: true}, WithRemoteClient(remote))

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "records.export.bulk", RequireLiveCheck: true},
		Identity:    identityWith("user-1"),
	})

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonFailOpen, d.Reason)
}

func TestAuthorizeNoRemoteClientDegrades(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "records.export.bulk", RequireLiveCheck: true},
		Identity:    identityWith("user-1"),
	})

	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.Equal(t, ReasonInsufficient, d.Reason)
	assert.False(t, d.RemoteChecked)
}

func TestCriticalAccessAudited(t *testing.T) {
	sink := &capturingAuditLogger{}
	engine := NewEngine(DefaultConfig(), WithAuditLogger(sink))

	engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{
			Permission:   "records.export.bulk",
			IsCritical:   true,
			AuditPurpose: "bulk data export",
		},
		Identity: identityWith("user-1", "records.export.bulk"),
		SourceIP: "10.0.0.9",
		Method:   "POST",
		Path:     "/api/v1/records/export",
	})

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, audit.EventTypeCriticalAccess, event.EventType)
	assert.Equal(t, audit.EventStatusAllowed, event.Status)
	assert.Equal(t, "user-1", event.PrincipalID)
	assert.Equal(t, "bulk data export", event.Purpose)
	assert.Equal(t, "10.0.0.9", event.SourceIP)
	assert.Equal(t, "records.export.bulk", event.PermissionID)
}

func TestCriticalDenialAudited(t *testing.T) {
	sink := &capturingAuditLogger{}
	engine := NewEngine(DefaultConfig(), WithAuditLogger(sink))

	engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "records.export.bulk", IsCritical: true},
		Identity:    identityWith("user-1", "orders.read.all"),
	})

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.EventTypeAccessDenied, sink.events[0].EventType)
	assert.Equal(t, audit.EventStatusDenied, sink.events[0].Status)
}

func TestNonCriticalNotAudited(t *testing.T) {
	sink := &capturingAuditLogger{}
	engine := NewEngine(DefaultConfig(), WithAuditLogger(sink))

	engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
		Identity:    identityWith("user-1", "orders.read.all"),
	})

	assert.Empty(t, sink.events)
}

func TestLegacyClaimTypeStillMatches(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	ident := identity.FromClaims(jwt.MapClaims{
		"sub":        "user-1",
		"permission": []interface{}{"orders.read.all"},
	})
	d := engine.Authorize(context.Background(), Request{
		Requirement: &PermissionRequirement{Permission: "orders.read.all"},
		Identity:    ident,
	})
	assert.True(t, d.Allowed())
}
