// Package repocache memoizes repository details for one pipeline run.
package repocache

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves details for a repository.
type FetchFunc func(ctx context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error)

// Cache holds at most one RepositoryDetails per repository. Concurrent first
// accesses to the same key share one fetch. Failures are not cached, so a
// later call retries.
//
// A Cache is scoped to one run; create a fresh one per run.
type Cache struct {
	fetch FetchFunc
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*hosting.RepositoryDetails
}

// New creates an empty cache backed by fetch.
func New(fetch FetchFunc) *Cache {
	return &Cache{
		fetch:   fetch,
		entries: make(map[string]*hosting.RepositoryDetails),
	}
}

// GetOrFetch returns the cached details for repo, fetching them on first use.
// The returned value is shared and must not be modified.
func (c *Cache) GetOrFetch(ctx context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error) {
	key := repo.FullName()
	if d, ok := c.lookup(key); ok {
		return d, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if d, ok := c.lookup(key); ok {
			return d, nil
		}
		d, err := c.fetch(ctx, repo)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = d
		c.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*hosting.RepositoryDetails), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*hosting.RepositoryDetails, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[key]
	return d, ok
}
