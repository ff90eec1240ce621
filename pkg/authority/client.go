package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/permissions"
)

// CheckRequest is a single entry in a bulk permission check.
type CheckRequest struct {
	PermissionID string
	ResourcePath string
}

// Client talks to the central authorization authority.
//
// GetUserPermissions degrades to an empty set on failure: callers treat
// empty as "no additional permissions", never as an error. CheckPermission
// surfaces transport failures to the caller; the fail-open/fail-closed
// decision belongs to the decision engine, not this layer.
type Client interface {
	// GetUserPermissions bulk-fetches the globally granted permissions for a
	// principal.
	GetUserPermissions(ctx context.Context, principalID string) []string

	// CheckPermission performs a single global or resource-scoped check.
	CheckPermission(ctx context.Context, principalID, permissionID, resourcePath string) (bool, error)

	// CheckPermissionsBulk issues the underlying single checks concurrently.
	// Every requested permission id is present in the result; failures map
	// to false so callers can index without a presence check.
	CheckPermissionsBulk(ctx context.Context, principalID string, requests []CheckRequest) map[string]bool

	// RegisterPermissions publishes the service's permission catalog.
	RegisterPermissions(ctx context.Context, serviceName string, perms []permissions.PermissionRegistration) error

	// RegisterRoles publishes the service's role catalog. Must be called
	// after RegisterPermissions: roles reference permission ids.
	RegisterRoles(ctx context.Context, serviceName string, roles []permissions.RoleRegistration) error
}

// Resolver extends Client with the raw resolve call, exposing the
// authority's cache directives for the caching layer.
type Resolver interface {
	Client
	ResolvePermissions(ctx context.Context, principalID string) (*ResolvePermissionsResponse, error)
}

// Wire types for the authority's HTTP contract.

// ResolvePermissionsRequest is the body of POST {base}/auth/resolve-permissions.
type ResolvePermissionsRequest struct {
	PrincipalID string `json:"PrincipalId"`
}

// ResolvePermissionsResponse is the authority's resolve reply.
type ResolvePermissionsResponse struct {
	PrincipalID string    `json:"PrincipalId"`
	Permissions []string  `json:"Permissions"`
	Roles       []string  `json:"Roles"`
	CacheUntil  time.Time `json:"CacheUntil"`
	FromCache   bool      `json:"FromCache"`
}

// CheckPermissionRequest is the body of POST {base}/auth/check-permission.
type CheckPermissionRequest struct {
	PrincipalID  string `json:"PrincipalId"`
	PermissionID string `json:"PermissionId"`
	ResourcePath string `json:"ResourcePath,omitempty"`
}

// CheckPermissionResponse is the authority's check reply.
type CheckPermissionResponse struct {
	PrincipalID  string  `json:"PrincipalId"`
	PermissionID string  `json:"PermissionId"`
	Allowed      bool    `json:"Allowed"`
	ResourcePath string  `json:"ResourcePath,omitempty"`
	FromCache    bool    `json:"FromCache"`
	LatencyMs    float64 `json:"LatencyMs"`
}

// RegisterPermissionsRequest is the body of POST {base}/permissions/register.
type RegisterPermissionsRequest struct {
	ServiceName string                               `json:"ServiceName"`
	Permissions []permissions.PermissionRegistration `json:"Permissions"`
}

// RegisterRolesRequest is the body of POST {base}/roles/register.
type RegisterRolesRequest struct {
	ServiceName string                         `json:"ServiceName"`
	Roles       []permissions.RoleRegistration `json:"Roles"`
}

// bulkCheckConcurrency caps the fan-out of a bulk check.
const bulkCheckConcurrency = 8

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying transport. The default client
// carries a 10s timeout; the authority's SLA is sub-50ms cache-cold, so even
// that is generous.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *observability.Logger) HTTPClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for the authority at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUserPermissions fetches the principal's globally granted permissions.
// Failures yield an empty set; the error is logged, not returned.
func (c *HTTPClient) GetUserPermissions(ctx context.Context, principalID string) []string {
	resp, err := c.ResolvePermissions(ctx, principalID)
	if err != nil {
		c.logger.WithError(err).WithField("principal_id", principalID).
			Warn("Failed to resolve permissions; treating as none granted")
		return []string{}
	}
	return resp.Permissions
}

// ResolvePermissions performs the raw resolve call.
func (c *HTTPClient) ResolvePermissions(ctx context.Context, principalID string) (*ResolvePermissionsResponse, error) {
	var out ResolvePermissionsResponse
	err := c.post(ctx, "/auth/resolve-permissions", ResolvePermissionsRequest{PrincipalID: principalID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckPermission performs a single permission check. A transport failure or
// non-2xx reply returns (false, err); interpreting that per fail-open policy
// is the caller's job.
func (c *HTTPClient) CheckPermission(ctx context.Context, principalID, permissionID, resourcePath string) (bool, error) {
	req := CheckPermissionRequest{
		PrincipalID:  principalID,
		PermissionID: permissionID,
		ResourcePath: resourcePath,
	}
	var out CheckPermissionResponse
	if err := c.post(ctx, "/auth/check-permission", req, &out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

// CheckPermissionsBulk fans out the individual checks concurrently and joins
// on all of them. Total latency is bounded by the slowest check, not the sum.
func (c *HTTPClient) CheckPermissionsBulk(ctx context.Context, principalID string, requests []CheckRequest) map[string]bool {
	results := make(map[string]bool, len(requests))
	if len(requests) == 0 {
		return results
	}

	// Seed every requested id with false so failures never leave an id
	// absent from the result.
	for _, req := range requests {
		results[req.PermissionID] = false
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkCheckConcurrency)

	for _, req := range requests {
		req := req
		g.Go(func() error {
			allowed, err := c.CheckPermission(gctx, principalID, req.PermissionID, req.ResourcePath)
			if err != nil {
				c.logger.WithError(err).
					WithField("principal_id", principalID).
					WithField("permission_id", req.PermissionID).
					Warn("Bulk permission check entry failed")
				return nil
			}
			mu.Lock()
			results[req.PermissionID] = allowed
			mu.Unlock()
			return nil
		})
	}

	// Individual failures are absorbed above; Wait only observes a
	// cancelled context, which leaves the remaining entries false.
	_ = g.Wait()

	return results
}

// RegisterPermissions publishes the permission catalog. Any non-2xx reply is
// a failure of the whole attempt.
func (c *HTTPClient) RegisterPermissions(ctx context.Context, serviceName string, perms []permissions.PermissionRegistration) error {
	req := RegisterPermissionsRequest{ServiceName: serviceName, Permissions: perms}
	return c.post(ctx, "/permissions/register", req, nil)
}

// RegisterRoles publishes the role catalog.
func (c *HTTPClient) RegisterRoles(ctx context.Context, serviceName string, roles []permissions.RoleRegistration) error {
	req := RegisterRolesRequest{ServiceName: serviceName, Roles: roles}
	return c.post(ctx, "/roles/register", req, nil)
}

// post issues a JSON POST and decodes the 2xx reply into out (when non-nil).
func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authority request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("authority request %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode authority response from %s: %w", path, err)
	}
	return nil
}
