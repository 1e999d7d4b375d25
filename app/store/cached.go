package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lcw/v2"
)

const defaultCacheKeys = 1000

// Cached is a read-through cache in front of a backend. Every outgoing request reads the host
// cookie, the cache keeps those reads off the backend. Put writes through and drops the cached key,
// the TTL limits how long values written by other processes can stay stale.
type Cached struct {
	backend Backend
	cache   lcw.LoadingCache[string]
}

// NewCached wraps the backend with an expirable cache.
func NewCached(backend Backend, ttl time.Duration) (*Cached, error) {
	o := lcw.NewOpts[string]()
	cache, err := lcw.NewExpirableCache(o.TTL(ttl), o.MaxKeys(defaultCacheKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to make cache: %w", err)
	}
	return &Cached{backend: backend, cache: cache}, nil
}

// Get returns the cookie string, loading it from the backend on cache miss.
// Missing keys and errors are not cached.
func (c *Cached) Get(ctx context.Context, key string) (string, error) {
	return c.cache.Get(key, func() (string, error) {
		return c.backend.Get(ctx, key)
	})
}

// Put writes the cookie string to the backend and invalidates the cached value.
func (c *Cached) Put(ctx context.Context, key, value string) error {
	err := c.backend.Put(ctx, key, value)
	c.cache.Delete(key)
	return err
}

// List returns entries from the backend, bypassing the cache.
func (c *Cached) List(ctx context.Context) ([]Entry, error) {
	l, ok := c.backend.(Lister)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return l.List(ctx)
}

// Delete removes the key from the backend and the cache.
func (c *Cached) Delete(ctx context.Context, key string) error {
	l, ok := c.backend.(Lister)
	if !ok {
		return errors.ErrUnsupported
	}
	err := l.Delete(ctx, key)
	c.cache.Delete(key)
	return err
}

// Close stops the cache and closes the backend.
func (c *Cached) Close() error {
	return errors.Join(c.cache.Close(), c.backend.Close())
}
