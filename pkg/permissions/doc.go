// Package permissions provides the permission model for the Warden
// authorization layer: hierarchical permission matching and the registration
// catalog a service advertises to the central authority.
//
// # Permission Strings
//
// A permission is a dot-separated string of the form service.resource.action:
//
//	invoice.invoices.create
//	orders.orders.read
//
// Registered permission ids must have exactly three segments. Held claims may
// additionally use a trailing wildcard segment, granting every permission that
// shares the prefix:
//
//	invoice.*          // every invoice-service permission
//	*                  // everything
//
// # Matching
//
// IsMatch compares one required permission to one held claim,
// case-insensitively. Wildcards are accepted only as the final claim segment;
// a claim like "*.delete" or "invoices.*.read" never matches anything. This
// is deliberate: mid-path wildcards would let a narrow-looking claim satisfy
// unrelated permissions.
//
//	permissions.IsMatch("invoice.invoices.create", "invoice.*")   // true
//	permissions.IsMatch("invoice.invoices.create", "*.create")    // false
//
// Match evaluates a required permission against a whole claim set:
//
//	allowed := permissions.Match(required, ident.PermissionClaims())
//
// # Registration Catalog
//
// Catalog bundles the PermissionRegistration and RoleRegistration records a
// service publishes at startup (see pkg/registration). Catalogs are declared
// in code or loaded from YAML with LoadCatalogFile; either way Validate
// rejects malformed permission ids before any network call is made.
package permissions
