package permissions

import "strings"

// SchemePrefix is the optional namespace prefix a claim or requirement may
// carry (e.g. "Permission:invoice.invoices.create"). It is stripped before
// comparison; the prefix comparison itself is case-insensitive.
const SchemePrefix = "permission:"

// Match reports whether at least one held claim satisfies the required
// permission per IsMatch. Match against an empty claim set is always false.
func Match(required string, heldClaims []string) bool {
	for _, claim := range heldClaims {
		if IsMatch(required, claim) {
			return true
		}
	}
	return false
}

// IsMatch reports whether a single held claim satisfies the required
// permission. Comparison is case-insensitive throughout.
//
// A claim equal to "*" matches anything. A "*" segment inside a claim is
// valid only as the final segment, where it covers all remaining required
// segments regardless of count; a wildcard at any non-final position never
// matches. This rejects claims like "*.delete" or "invoices.*.read" that
// would otherwise grant unintended permissions.
//
// Empty or whitespace-only inputs never match. The function allocates
// nothing on the common paths; it runs on every authorized request.
func IsMatch(required, claim string) bool {
	required = strings.TrimSpace(required)
	claim = strings.TrimSpace(claim)
	if required == "" || claim == "" {
		return false
	}

	required = stripScheme(required)
	claim = stripScheme(claim)
	if required == "" || claim == "" {
		return false
	}

	if strings.EqualFold(required, claim) {
		return true
	}
	if claim == "*" {
		return true
	}

	// Walk the claim's segments against the required permission's segments.
	ri, ci := 0, 0
	for {
		cs, cNext, cOK := nextSegment(claim, ci)
		if !cOK {
			// Claim exhausted: success only if no required segments remain.
			_, _, rOK := nextSegment(required, ri)
			return !rOK
		}

		if cs == "*" {
			// Valid only as the final claim segment.
			if _, _, more := nextSegment(claim, cNext); more {
				return false
			}
			return true
		}

		rs, rNext, rOK := nextSegment(required, ri)
		if !rOK {
			// Claim is more specific than what's required; not a grant.
			return false
		}
		if !strings.EqualFold(cs, rs) {
			return false
		}

		ci, ri = cNext, rNext
	}
}

// stripScheme removes the SchemePrefix if present (case-insensitive).
func stripScheme(s string) string {
	if len(s) >= len(SchemePrefix) && strings.EqualFold(s[:len(SchemePrefix)], SchemePrefix) {
		return s[len(SchemePrefix):]
	}
	return s
}

// nextSegment returns the dot-separated segment starting at offset i, the
// offset of the following segment, and whether a segment existed at i.
func nextSegment(s string, i int) (seg string, next int, ok bool) {
	if i > len(s) {
		return "", i, false
	}
	j := strings.IndexByte(s[i:], '.')
	if j < 0 {
		return s[i:], len(s) + 1, true
	}
	return s[i : i+j], i + j + 1, true
}
