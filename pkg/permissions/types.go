package permissions

import (
	"fmt"
	"strings"
)

// PermissionRegistration describes a single grantable capability a service
// advertises to the central authority. PermissionId follows the
// service.resource.action convention: exactly three non-empty dot-separated
// segments.
type PermissionRegistration struct {
	PermissionID string `json:"PermissionId" yaml:"permission_id"`
	Description  string `json:"Description" yaml:"description"`
}

// RoleRegistration describes a named bundle of permission ids. The listed
// permission ids may belong to other services; referential integrity is
// owned by the remote authority, not checked here.
type RoleRegistration struct {
	RoleID        string   `json:"RoleId" yaml:"role_id"`
	Description   string   `json:"Description" yaml:"description"`
	PermissionIDs []string `json:"PermissionIds" yaml:"permission_ids"`
	IsCustom      bool     `json:"IsCustom" yaml:"is_custom"`
}

// Catalog is the full set of permissions and roles a service registers.
// It is constructed once at startup and immutable thereafter.
type Catalog struct {
	ServiceName string                   `yaml:"service_name"`
	Permissions []PermissionRegistration `yaml:"permissions"`
	Roles       []RoleRegistration       `yaml:"roles"`
}

// permissionIDSegments is the required segment count for a permission id.
const permissionIDSegments = 3

// ValidatePermissionID checks the service.resource.action format: exactly
// three dot-separated, non-empty segments.
func ValidatePermissionID(id string) error {
	parts := strings.Split(id, ".")
	if len(parts) != permissionIDSegments {
		return fmt.Errorf("permission id %q must have exactly %d dot-separated segments (service.resource.action), got %d",
			id, permissionIDSegments, len(parts))
	}
	for i, seg := range parts {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("permission id %q has an empty segment at position %d", id, i)
		}
	}
	return nil
}

// Validate checks the catalog's shape. A malformed catalog is a deployment
// defect: callers are expected to fail startup on error rather than degrade.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("catalog service name is required")
	}
	for _, p := range c.Permissions {
		if err := ValidatePermissionID(p.PermissionID); err != nil {
			return fmt.Errorf("invalid permission registration: %w", err)
		}
	}
	for _, r := range c.Roles {
		if strings.TrimSpace(r.RoleID) == "" {
			return fmt.Errorf("role registration with empty role id")
		}
	}
	return nil
}
