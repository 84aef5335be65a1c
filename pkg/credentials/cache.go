package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultRefreshWindow is how long before expiry a cached snapshot is
// treated as stale.
const DefaultRefreshWindow = 5 * time.Minute

// Cache wraps a Provider and serves a cached snapshot until it nears
// expiry. Refreshes are serialized so a credential source is hit once per
// expiry, not once per concurrent call.
type Cache struct {
	provider Provider
	window   time.Duration

	mu    sync.Mutex
	creds Credentials
	valid bool
}

// CacheOption adjusts Cache behavior.
type CacheOption func(*Cache)

// WithRefreshWindow sets how long before expiry the cache refreshes.
func WithRefreshWindow(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.window = d
	}
}

// NewCache wraps provider with snapshot caching.
func NewCache(provider Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		provider: provider,
		window:   DefaultRefreshWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Retrieve(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && !c.stale() {
		return c.creds, nil
	}

	creds, err := c.provider.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to refresh credentials: %w", err)
	}
	c.creds = creds
	c.valid = true
	return creds, nil
}

func (c *Cache) stale() bool {
	if !c.creds.CanExpire {
		return false
	}
	return !time.Now().Add(c.window).Before(c.creds.Expires)
}

// Invalidate drops the cached snapshot so the next Retrieve refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
