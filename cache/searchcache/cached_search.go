package searchcache

import (
	"context"

	"github.com/briefloop/researchcore/search"
)

// CachedSearch is the single entry point the Research Pipeline (§4.F) calls
// instead of invoking a search.Capability directly: exact-fingerprint cache
// hit, then semantic-dedup hit, then a live call that populates both.
//
// c may be nil, in which case fingerprint caching is skipped entirely —
// this keeps the feature behind the enableSearchCache flag (§5) without a
// second code path. dedup may likewise be nil, behind enableSemanticDedup.
func CachedSearch(ctx context.Context, c *Cache, dedup *Dedup, capability search.Capability, query string, filters search.SearchFilters) (*search.SearchResponse, error) {
	provider := capability.Name()

	if c != nil {
		if resp, ok := c.Get(ctx, query, filters, provider); ok {
			return resp, nil
		}
	}

	if c != nil && dedup != nil {
		if key, ok := dedup.Lookup(ctx, query, filters); ok {
			var resp search.SearchResponse
			if err := c.store.Get(ctx, entryPrefix+key, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	resp, err := capability.Search(ctx, query, filters)
	if err != nil {
		return nil, err
	}

	if c != nil {
		c.Set(ctx, query, filters, provider, resp)
		if dedup != nil {
			dedup.Store(ctx, query, filters, Fingerprint(query, filters, provider))
		}
	}
	return resp, nil
}
