// Package authz makes per-request authorization decisions for permission
// protected operations.
//
// # Decision Flow
//
// A route declares a PermissionRequirement: the permission id it demands
// plus optional policy modifiers (live check, resource-path template,
// critical audit). At request time the Engine first matches the caller's
// token claims locally; if the claims do not cover the permission and the
// requirement warrants it, a live check against the authorization authority
// follows. Authority failures resolve per the fail-open configuration,
// defaulting to closed.
//
// # Policy Names
//
// Requirements round-trip through a compact policy-name encoding
// ("Permission:{id}[:modifiers]") so declarative route tables and config
// files can carry them as plain strings. See PolicyName and ParsePolicyName.
//
// Requirements are immutable after construction and safe to share across
// goroutines.
package authz
