package authz

import (
	"context"
	"time"

	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/authority"
	"github.com/wardenhq/warden/pkg/identity"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/permissions"
)

// Config holds the engine's policy switches.
type Config struct {
	// Enabled is the master kill-switch. When false every check passes;
	// intended for local development, never production.
	Enabled bool

	// ResourceScopedEnabled gates whether a resource-path template on a
	// requirement ever triggers a remote check.
	ResourceScopedEnabled bool

	// FailOpenOnError allows the request when the authority is unreachable
	// during a warranted remote check. Off by default: unavailability then
	// surfaces as OutcomeUnavailable, distinct from a denial.
	FailOpenOnError bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Outcome is the terminal state of an authorization check.
type Outcome int

const (
	// OutcomeAllowed permits the request.
	OutcomeAllowed Outcome = iota

	// OutcomeDenied rejects the request. A denial is final: no other
	// authorization mechanism layered on top may override it.
	OutcomeDenied

	// OutcomeUnauthenticated rejects the request for lack of a verified
	// identity; maps to a challenge response, not a forbidden one.
	OutcomeUnauthenticated

	// OutcomeUnavailable means the authority could not be reached and
	// fail-open is disabled. Surfaced distinctly so callers can tell "you
	// lack permission" from "we could not determine your permission".
	OutcomeUnavailable
)

// Decision reason strings, recorded in metrics and denial responses.
const (
	ReasonDisabled        = "authorization_disabled"
	ReasonUnauthenticated = "unauthenticated"
	ReasonNoPrincipal     = "missing_principal_claim"
	ReasonInsufficient    = "insufficient_permissions"
	ReasonRemoteDenied    = "remote_check_denied"
	ReasonUnavailable     = "authority_unavailable"
	ReasonFailOpen        = "fail_open"
	ReasonLocalMatch      = "local_match"
	ReasonRemoteAllowed   = "remote_check_allowed"
)

// Decision is the result of one authorization check.
type Decision struct {
	Outcome     Outcome
	Reason      string
	PrincipalID string

	// RemoteChecked is true when a live authority check was consulted.
	RemoteChecked bool

	// ResolvedPath is the resource path sent to the authority, when one was.
	ResolvedPath string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllowed }

// Request carries the per-invocation inputs of a check.
type Request struct {
	// Requirement is the protected operation's policy, shared across
	// requests.
	Requirement *PermissionRequirement

	// Identity is the verified caller, nil when unauthenticated.
	Identity *identity.Identity

	// RouteVars are the route parameters used to resolve the resource-path
	// template.
	RouteVars map[string]string

	// SourceIP, Method, Path and RequestID provide audit context.
	SourceIP  string
	Method    string
	Path      string
	RequestID string
}

// Engine makes per-request authorization decisions: local claim matching
// first, then an optional live authority check governed by the requirement
// and configuration. All failure paths resolve to an explicit Decision;
// nothing in here returns an error to the request path.
type Engine struct {
	cfg      Config
	remote   authority.Client // nil when no authority is configured
	auditLog audit.Logger
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRemoteClient wires the authority client. Without one the engine
// degrades to claims-only checks.
func WithRemoteClient(client authority.Client) EngineOption {
	return func(e *Engine) { e.remote = client }
}

// WithAuditLogger wires the audit sink for critical operations.
func WithAuditLogger(logger audit.Logger) EngineOption {
	return func(e *Engine) { e.auditLog = logger }
}

// WithMetrics wires decision metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger sets the structured logger.
func WithEngineLogger(logger *observability.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a decision engine.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		auditLog: audit.NewNopLogger(),
		logger:   observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize runs the decision flow for one request.
func (e *Engine) Authorize(ctx context.Context, req Request) Decision {
	if !e.cfg.Enabled {
		return Decision{Outcome: OutcomeAllowed, Reason: ReasonDisabled}
	}

	if req.Identity == nil {
		return e.denied(ctx, req, Decision{Outcome: OutcomeUnauthenticated, Reason: ReasonUnauthenticated})
	}

	principalID := req.Identity.Subject
	if principalID == "" {
		return e.denied(ctx, req, Decision{Outcome: OutcomeUnauthenticated, Reason: ReasonNoPrincipal})
	}

	claims := req.Identity.PermissionClaims()
	if permissions.Match(req.Requirement.Permission, claims) {
		return e.allowed(ctx, req, Decision{
			Outcome:     OutcomeAllowed,
			Reason:      ReasonLocalMatch,
			PrincipalID: principalID,
		})
	}

	if !e.remoteCheckWarranted(req.Requirement) {
		return e.denied(ctx, req, Decision{
			Outcome:     OutcomeDenied,
			Reason:      ReasonInsufficient,
			PrincipalID: principalID,
		})
	}

	if e.remote == nil {
		// No authority configured: degrade to claims-only, which already
		// said no.
		e.logger.WithField("permission", req.Requirement.Permission).
			Debug("Remote check warranted but no authority client configured")
		return e.denied(ctx, req, Decision{
			Outcome:     OutcomeDenied,
			Reason:      ReasonInsufficient,
			PrincipalID: principalID,
		})
	}

	return e.remoteCheck(ctx, req, principalID)
}

// remoteCheckWarranted: an explicit live-check flag, or a
// resource-path template with resource-scoped authorization enabled.
func (e *Engine) remoteCheckWarranted(req *PermissionRequirement) bool {
	if req.RequireLiveCheck {
		return true
	}
	return req.ResourcePathTemplate != "" && e.cfg.ResourceScopedEnabled
}

func (e *Engine) remoteCheck(ctx context.Context, req Request, principalID string) Decision {
	resolvedPath := ResolveResourcePath(req.Requirement.ResourcePathTemplate, req.RouteVars)

	start := time.Now()
	allowed, err := e.remote.CheckPermission(ctx, principalID, req.Requirement.Permission, resolvedPath)
	e.observeRemoteCheck(time.Since(start), allowed, err)

	if err != nil {
		e.logger.WithError(err).
			WithField("principal_id", principalID).
			WithField("permission", req.Requirement.Permission).
			Error("Live permission check failed")

		if e.cfg.FailOpenOnError {
			return e.allowed(ctx, req, Decision{
				Outcome:       OutcomeAllowed,
				Reason:        ReasonFailOpen,
				PrincipalID:   principalID,
				RemoteChecked: true,
				ResolvedPath:  resolvedPath,
			})
		}
		return e.denied(ctx, req, Decision{
			Outcome:       OutcomeUnavailable,
			Reason:        ReasonUnavailable,
			PrincipalID:   principalID,
			RemoteChecked: true,
			ResolvedPath:  resolvedPath,
		})
	}

	if !allowed {
		return e.denied(ctx, req, Decision{
			Outcome:       OutcomeDenied,
			Reason:        ReasonRemoteDenied,
			PrincipalID:   principalID,
			RemoteChecked: true,
			ResolvedPath:  resolvedPath,
		})
	}

	return e.allowed(ctx, req, Decision{
		Outcome:       OutcomeAllowed,
		Reason:        ReasonRemoteAllowed,
		PrincipalID:   principalID,
		RemoteChecked: true,
		ResolvedPath:  resolvedPath,
	})
}

func (e *Engine) allowed(ctx context.Context, req Request, d Decision) Decision {
	if e.metrics != nil {
		e.metrics.AuthzAllowedTotal.WithLabelValues(req.Requirement.Permission).Inc()
	}
	if req.Requirement.IsCritical {
		e.auditCritical(ctx, req, d, audit.EventTypeCriticalAccess, audit.EventStatusAllowed)
	}
	return d
}

func (e *Engine) denied(ctx context.Context, req Request, d Decision) Decision {
	if e.metrics != nil {
		e.metrics.AuthzDeniedTotal.WithLabelValues(req.Requirement.Permission, d.Reason).Inc()
	}
	if req.Requirement.IsCritical && d.Outcome != OutcomeUnauthenticated {
		e.auditCritical(ctx, req, d, audit.EventTypeAccessDenied, audit.EventStatusDenied)
	}
	return d
}

// auditCritical emits the structured audit record for a critical operation.
// The purpose comes exclusively from the server-side requirement; a
// client-supplied purpose header is never consulted.
func (e *Engine) auditCritical(ctx context.Context, req Request, d Decision, eventType audit.EventType, status audit.EventStatus) {
	event := audit.NewEvent(eventType, status)
	event.PrincipalID = d.PrincipalID
	if req.Identity != nil {
		event.ClientID = req.Identity.ClientID
	}
	event.SourceIP = req.SourceIP
	event.PermissionID = req.Requirement.Permission
	event.ResourcePath = d.ResolvedPath
	event.Purpose = req.Requirement.AuditPurpose
	event.RequestID = req.RequestID
	event.Method = req.Method
	event.Path = req.Path
	event.Message = d.Reason

	if err := e.auditLog.Log(ctx, event); err != nil {
		// An audit write failure must not fail the request, but it has to
		// be visible.
		e.logger.WithError(err).
			WithField("permission", req.Requirement.Permission).
			WithField("principal_id", d.PrincipalID).
			Error("Failed to write critical-access audit record")
	}
}

func (e *Engine) observeRemoteCheck(elapsed time.Duration, allowed bool, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "allowed"
	switch {
	case err != nil:
		outcome = "error"
		e.metrics.RemoteCheckErrorsTotal.Inc()
	case !allowed:
		outcome = "denied"
	}
	e.metrics.RemoteCheckDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
