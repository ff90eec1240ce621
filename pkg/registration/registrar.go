package registration

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/pkg/authority"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/permissions"
)

// Registrar publishes a service's permission catalog to the authorization
// authority.
type Registrar struct {
	catalog *permissions.Catalog
	client  authority.Client
	logger  *observability.Logger
}

// NewRegistrar creates a registrar for one catalog.
func NewRegistrar(catalog *permissions.Catalog, client authority.Client, logger *observability.Logger) *Registrar {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Registrar{catalog: catalog, client: client, logger: logger}
}

// Validate checks the whole catalog before any network call. It fails fast
// on the first malformed entry; a catalog with a bad permission id must
// never be partially published.
func (r *Registrar) Validate() error {
	return r.catalog.Validate()
}

// Publish sends the catalog: permissions first, then roles, so a role never
// references a permission the authority has not seen. Either failure aborts
// the whole publish; the next retry resends both sets, the authority treats
// registration as an upsert.
func (r *Registrar) Publish(ctx context.Context) error {
	if err := r.client.RegisterPermissions(ctx, r.catalog.ServiceName, r.catalog.Permissions); err != nil {
		return fmt.Errorf("registering %d permissions for %q: %w", len(r.catalog.Permissions), r.catalog.ServiceName, err)
	}
	r.logger.WithField("service", r.catalog.ServiceName).
		WithField("count", len(r.catalog.Permissions)).
		Debug("Registered permissions")

	if err := r.client.RegisterRoles(ctx, r.catalog.ServiceName, r.catalog.Roles); err != nil {
		return fmt.Errorf("registering %d roles for %q: %w", len(r.catalog.Roles), r.catalog.ServiceName, err)
	}
	r.logger.WithField("service", r.catalog.ServiceName).
		WithField("count", len(r.catalog.Roles)).
		Debug("Registered roles")

	return nil
}
