package authz

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/pkg/permissions"
)

// PermissionRequirement declares the authorization policy of a protected
// operation. It is constructed once at route-registration time, read-only
// thereafter, and shared across all requests to that operation; the hot path
// never parses policy strings.
type PermissionRequirement struct {
	// Permission is the required permission id (service.resource.action).
	Permission string

	// ResourcePathTemplate optionally narrows the check to a resource
	// instance, e.g. "customers/{customerId}/orders/{orderId}". Placeholders
	// are filled from route parameters at request time.
	ResourcePathTemplate string

	// RequireLiveCheck forces a remote authority check even when the local
	// claim match fails and resource-scoped authorization is disabled.
	RequireLiveCheck bool

	// PreValidateModel marks operations whose request body must be
	// validated before the handler runs. Carried in the policy name for the
	// routing collaborator; the engine itself does not act on it.
	PreValidateModel bool

	// IsCritical marks operations whose allowed invocations are audited.
	IsCritical bool

	// AuditPurpose is the server-side purpose text embedded in critical
	// audit records. Client-supplied purpose values are never consulted:
	// trusting a request header here would let callers spoof audit trails.
	AuditPurpose string
}

// policyPrefix and the policy-name modifier tokens. The encoded form is
//
//	Permission:{permission}[:validate_model][:critical][:purpose_{text}]
//
// and is consumed by the policy-resolution collaborator at the routing layer.
const (
	policyPrefix        = "Permission:"
	modifierValidate    = "validate_model"
	modifierCritical    = "critical"
	modifierPurposeStem = "purpose_"
)

// PolicyName encodes the requirement as an opaque policy-name string.
func (r *PermissionRequirement) PolicyName() string {
	var b strings.Builder
	b.WriteString(policyPrefix)
	b.WriteString(r.Permission)
	if r.PreValidateModel {
		b.WriteByte(':')
		b.WriteString(modifierValidate)
	}
	if r.IsCritical {
		b.WriteByte(':')
		b.WriteString(modifierCritical)
	}
	if r.AuditPurpose != "" {
		b.WriteByte(':')
		b.WriteString(modifierPurposeStem)
		b.WriteString(SanitizePurpose(r.AuditPurpose))
	}
	return b.String()
}

// ParsePolicyName decodes a policy-name string produced by PolicyName.
// The resource-path template and live-check flag are not part of the encoded
// form; they are attached directly at route registration.
func ParsePolicyName(name string) (*PermissionRequirement, error) {
	if !strings.HasPrefix(name, policyPrefix) {
		return nil, fmt.Errorf("policy name %q does not start with %q", name, policyPrefix)
	}

	parts := strings.Split(name[len(policyPrefix):], ":")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("policy name %q carries no permission", name)
	}

	req := &PermissionRequirement{Permission: parts[0]}
	for _, mod := range parts[1:] {
		switch {
		case mod == modifierValidate:
			req.PreValidateModel = true
		case mod == modifierCritical:
			req.IsCritical = true
		case strings.HasPrefix(mod, modifierPurposeStem):
			req.AuditPurpose = mod[len(modifierPurposeStem):]
		default:
			return nil, fmt.Errorf("policy name %q has unknown modifier %q", name, mod)
		}
	}
	return req, nil
}

// Validate checks the requirement at construction time. A bad permission id
// on a route declaration is a code defect; fail startup, not requests.
func (r *PermissionRequirement) Validate() error {
	if err := permissions.ValidatePermissionID(r.Permission); err != nil {
		return fmt.Errorf("invalid permission requirement: %w", err)
	}
	return nil
}

// SanitizePurpose maps audit-purpose text to the [A-Za-z0-9._-] alphabet,
// with spaces becoming underscores. The result is embedded in an
// identifier-like policy name, so anything else is dropped.
func SanitizePurpose(purpose string) string {
	var b strings.Builder
	b.Grow(len(purpose))
	for _, c := range purpose {
		switch {
		case c == ' ':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			b.WriteRune(c)
		}
	}
	return b.String()
}
