package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domain "tracevault/pkg/domain"
)

// CachingResolver memoizes successful resolutions for a bounded TTL and
// collapses concurrent lookups for the same DID into a single upstream
// call. Failures are never cached: a transient resolver outage must not
// poison subsequent retrievals.
type CachingResolver struct {
	next Resolver
	ttl  time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	docs  map[domain.DID]cachedDoc

	now func() time.Time
}

type cachedDoc struct {
	doc     *Document
	fetched time.Time
}

// NewCachingResolver wraps next with a TTL cache.
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next: next,
		ttl:  ttl,
		docs: make(map[domain.DID]cachedDoc),
		now:  time.Now,
	}
}

// Resolve serves from cache when fresh, otherwise deduplicates the
// upstream fetch via singleflight.
func (c *CachingResolver) Resolve(ctx context.Context, did domain.DID) (*Document, error) {
	c.mu.RLock()
	entry, ok := c.docs[did]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.doc, nil
	}

	v, err, _ := c.group.Do(did.String(), func() (any, error) {
		doc, err := c.next.Resolve(ctx, did)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.docs[did] = cachedDoc{doc: doc, fetched: c.now()}
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Invalidate drops a cached document, forcing the next lookup upstream.
// Used when a verification failure suggests key rotation.
func (c *CachingResolver) Invalidate(did domain.DID) {
	c.mu.Lock()
	delete(c.docs, did)
	c.mu.Unlock()
}

var _ Resolver = (*CachingResolver)(nil)
