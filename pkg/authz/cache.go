package authz

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL bounds how long a decision is reused.
const DefaultCacheTTL = 10 * time.Second

// CachedAuthorizer memoizes the decisions of another Authorizer for a short
// TTL. Errors are never cached.
type CachedAuthorizer struct {
	inner Authorizer
	cache *gocache.Cache
}

// NewCachedAuthorizer wraps inner.
func NewCachedAuthorizer(inner Authorizer, ttl time.Duration) *CachedAuthorizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAuthorizer{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedAuthorizer) Authorize(ctx context.Context, req Request) (bool, error) {
	key := strings.Join([]string{string(req.Principal), req.Resource, req.Verb}, "\x00")
	if v, ok := c.cache.Get(key); ok {
		return v.(bool), nil
	}
	allowed, err := c.inner.Authorize(ctx, req)
	if err != nil {
		return false, err
	}
	c.cache.SetDefault(key, allowed)
	return allowed, nil
}

// Flush drops every cached decision.
func (c *CachedAuthorizer) Flush() {
	c.cache.Flush()
}
