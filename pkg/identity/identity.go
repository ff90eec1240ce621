// Package identity consumes the verified identity produced by the upstream
// authenticator. Token validation is an external collaborator; this package
// only reads claims.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claim types consumed from the authenticated identity.
const (
	// ClaimPermissions is the current permission claim type.
	ClaimPermissions = "permissions"

	// ClaimPermissionLegacy is the legacy permission claim type. Tokens may
	// carry both; values are merged and de-duplicated.
	ClaimPermissionLegacy = "permission"

	// ClaimSubject is the standard subject claim holding the principal id.
	ClaimSubject = "sub"

	// ClaimClientID and ClaimAuthorizedParty identify the calling
	// application, when present.
	ClaimClientID        = "client_id"
	ClaimAuthorizedParty = "azp"
)

// Identity is the authenticated principal attached to a request. It is
// constructed once per request from verified claims and read-only thereafter.
type Identity struct {
	// Subject is the principal id. Empty when the token carries no subject
	// claim; the decision engine treats that as a denial.
	Subject string

	// ClientID is the calling application id, when the token carries one.
	ClientID string

	// Claims holds the raw verified claims.
	Claims jwt.MapClaims

	permissionClaims []string
}

// FromClaims builds an Identity from verified JWT claims. A nil claims map
// yields a nil Identity, which downstream code treats as unauthenticated.
func FromClaims(claims jwt.MapClaims) *Identity {
	if claims == nil {
		return nil
	}

	ident := &Identity{
		Subject: stringClaim(claims, ClaimSubject),
		Claims:  claims,
	}

	ident.ClientID = stringClaim(claims, ClaimClientID)
	if ident.ClientID == "" {
		ident.ClientID = stringClaim(claims, ClaimAuthorizedParty)
	}

	ident.permissionClaims = collectPermissionClaims(claims)
	return ident
}

// PermissionClaims returns the de-duplicated permission claim values from
// both the current and legacy claim types. The slice is shared; callers must
// not mutate it.
func (i *Identity) PermissionClaims() []string {
	if i == nil {
		return nil
	}
	return i.permissionClaims
}

// collectPermissionClaims merges the "permissions" and "permission" claim
// types into one de-duplicated list. A token carrying both types, or repeated
// values, must not be double-counted: duplicates would inflate audit records
// and confuse bulk checks.
func collectPermissionClaims(claims jwt.MapClaims) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	for _, claimType := range []string{ClaimPermissions, ClaimPermissionLegacy} {
		switch v := claims[claimType].(type) {
		case string:
			add(v)
		case []string:
			for _, s := range v {
				add(s)
			}
		case []interface{}:
			for _, e := range v {
				if s, ok := e.(string); ok {
					add(s)
				}
			}
		}
	}

	return out
}

// stringClaim returns the named claim as a string, or "" when absent or not
// a string.
func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
