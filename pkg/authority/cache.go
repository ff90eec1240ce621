package authority

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wardenhq/warden/pkg/observability"
)

// CacheConfig configures the resolved-permissions cache.
type CacheConfig struct {
	// L1Size is the in-process LRU capacity (principals). Default 1024.
	L1Size int

	// FallbackTTL is used when the authority's CacheUntil is absent or in
	// the past. Default 30s.
	FallbackTTL time.Duration

	// MaxTTL caps the TTL derived from CacheUntil. Default 5m.
	MaxTTL time.Duration

	// Redis is the optional shared L2. When nil, only the L1 is used.
	Redis *redis.Client
}

// l1Entry is a cached permission set with its expiry.
type l1Entry struct {
	permissions []string
	expiresAt   time.Time
}

// CachingClient wraps a Resolver with an L1 (in-process LRU) and optional L2
// (Redis) cache of resolved permission sets. Only GetUserPermissions is
// cached: point checks may be resource-scoped, and their caching is owned by
// the authority itself (it echoes FromCache on the wire).
//
// Redis unavailability degrades silently to L1 + remote; the cache never
// turns a working authority into a failure.
type CachingClient struct {
	Resolver

	cfg    CacheConfig
	l1     *lru.Cache[string, l1Entry]
	logger *observability.Logger
}

// NewCachingClient wraps inner with the configured cache layers.
func NewCachingClient(inner Resolver, cfg CacheConfig, logger *observability.Logger) (*CachingClient, error) {
	if cfg.L1Size <= 0 {
		cfg.L1Size = 1024
	}
	if cfg.FallbackTTL <= 0 {
		cfg.FallbackTTL = 30 * time.Second
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	l1, err := lru.New[string, l1Entry](cfg.L1Size)
	if err != nil {
		return nil, err
	}

	return &CachingClient{
		Resolver: inner,
		cfg:      cfg,
		l1:       l1,
		logger:   logger,
	}, nil
}

// GetUserPermissions returns the cached permission set when fresh, falling
// through L1 → Redis → authority. Like the underlying client, failures yield
// an empty set rather than an error.
func (c *CachingClient) GetUserPermissions(ctx context.Context, principalID string) []string {
	if entry, ok := c.l1.Get(principalID); ok && time.Now().Before(entry.expiresAt) {
		return entry.permissions
	}

	if perms, ok := c.redisGet(ctx, principalID); ok {
		// Refresh the L1 with the fallback TTL; the authoritative expiry
		// already bounds the Redis entry.
		c.l1.Add(principalID, l1Entry{permissions: perms, expiresAt: time.Now().Add(c.cfg.FallbackTTL)})
		return perms
	}

	resp, err := c.ResolvePermissions(ctx, principalID)
	if err != nil {
		c.logger.WithError(err).WithField("principal_id", principalID).
			Warn("Failed to resolve permissions; treating as none granted")
		return []string{}
	}

	ttl := c.ttlFor(resp.CacheUntil)
	c.l1.Add(principalID, l1Entry{permissions: resp.Permissions, expiresAt: time.Now().Add(ttl)})
	c.redisSet(ctx, principalID, resp.Permissions, ttl)

	return resp.Permissions
}

// Invalidate drops the cached permission set for a principal from both
// layers. Used when the service learns of a grant change out of band.
func (c *CachingClient) Invalidate(ctx context.Context, principalID string) {
	c.l1.Remove(principalID)
	if c.cfg.Redis != nil {
		if err := c.cfg.Redis.Del(ctx, redisKey(principalID)).Err(); err != nil {
			c.logger.WithError(err).WithField("principal_id", principalID).
				Debug("Failed to invalidate Redis permission cache entry")
		}
	}
}

// ttlFor derives a TTL from the authority's CacheUntil directive, bounded to
// (0, MaxTTL] with FallbackTTL for absent or stale directives.
func (c *CachingClient) ttlFor(cacheUntil time.Time) time.Duration {
	ttl := time.Until(cacheUntil)
	if ttl <= 0 {
		return c.cfg.FallbackTTL
	}
	if ttl > c.cfg.MaxTTL {
		return c.cfg.MaxTTL
	}
	return ttl
}

func redisKey(principalID string) string {
	return "warden:perms:" + principalID
}

func (c *CachingClient) redisGet(ctx context.Context, principalID string) ([]string, bool) {
	if c.cfg.Redis == nil {
		return nil, false
	}

	data, err := c.cfg.Redis.Get(ctx, redisKey(principalID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Redis permission cache read failed")
		}
		return nil, false
	}

	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		c.logger.WithError(err).Debug("Redis permission cache entry corrupt; ignoring")
		return nil, false
	}
	return perms, true
}

func (c *CachingClient) redisSet(ctx context.Context, principalID string, perms []string, ttl time.Duration) {
	if c.cfg.Redis == nil {
		return
	}

	data, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := c.cfg.Redis.Set(ctx, redisKey(principalID), data, ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Redis permission cache write failed")
	}
}
