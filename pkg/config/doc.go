// Package config loads application configuration from WARDEN_* environment
// variables with sensible production defaults: permission checks enabled,
// resource-scoped checks and fail-open disabled.
package config
