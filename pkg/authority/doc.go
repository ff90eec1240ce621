// Package authority is the client for the central authorization authority:
// live permission checks, bulk checks with concurrent fan-out, permission
// set resolution with L1/L2 caching, and catalog registration.
//
// The client is deliberately fail-closed at its own layer: a failed point
// check reports (false, err) and a failed resolve reports an empty set.
// Whether a remote failure should instead allow the action (fail-open) is a
// policy decision made by pkg/authz, one layer up.
package authority
