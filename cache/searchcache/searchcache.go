// Package searchcache is the Search Cache + Semantic Dedup layer (§4.D):
// freshness-aware caching of search responses keyed by fingerprint, plus
// embedding-based reuse of results for semantically equivalent queries.
// Built entirely on top of cache.Store (§4.A); nothing here talks to Redis
// directly.
package searchcache

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/search"
)

const (
	entryPrefix = "searchcache:entry:"
	metaPrefix  = "searchcache:meta:"
)

type Config struct {
	BaseTTL          time.Duration
	PopularTTL       time.Duration
	TTLJitter        float64 // multiplicative jitter: ttl*(1+U[0,jitter]), e.g. 0.1 = up to +10%
	PopularThreshold int64
}

// Meta is the sibling metadata entry tracked per cache key (§3 SearchCacheEntry).
type Meta struct {
	Hits         int64
	FirstCached  time.Time
	LastAccessed time.Time
	Provider     string
}

type Cache struct {
	store cache.Store
	cfg   Config
}

func New(store cache.Store, cfg Config) *Cache {
	return &Cache{store: store, cfg: cfg}
}

// Fingerprint computes the stable hash described in §3: normalized query |
// freshness | country | language | count | offset | sorted include/exclude
// domains | provider.
func Fingerprint(query string, filters search.SearchFilters, provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	include := append([]string(nil), filters.IncludeDomains...)
	exclude := append([]string(nil), filters.ExcludeDomains...)
	sort.Strings(include)
	sort.Strings(exclude)

	parts := []string{
		normalized,
		string(filters.Freshness),
		filters.Country,
		filters.Language,
		fmt.Sprintf("%d", filters.Count),
		fmt.Sprintf("%d", filters.Offset),
		strings.Join(include, ","),
		strings.Join(exclude, ","),
		provider,
	}
	return cache.HashKey(strings.Join(parts, "|"))
}

// Get returns a cached SearchResponse for the fingerprint, bumping hits
// and lastAccessed on a hit.
func (c *Cache) Get(ctx context.Context, query string, filters search.SearchFilters, provider string) (*search.SearchResponse, bool) {
	key := Fingerprint(query, filters, provider)

	var resp search.SearchResponse
	if err := c.store.Get(ctx, entryPrefix+key, &resp); err != nil {
		return nil, false
	}

	var meta Meta
	if err := c.store.Get(ctx, metaPrefix+key, &meta); err == nil {
		meta.Hits++
		meta.LastAccessed = time.Now()
		_ = c.store.Set(ctx, metaPrefix+key, meta, c.ttlFor(meta.Hits))
	}
	return &resp, true
}

// Set writes a response and its metadata, choosing popularTtl when the
// existing metadata already crossed popularThreshold hits, else baseTtl,
// with multiplicative jitter applied to prevent stampede.
func (c *Cache) Set(ctx context.Context, query string, filters search.SearchFilters, provider string, resp *search.SearchResponse) {
	key := Fingerprint(query, filters, provider)

	var meta Meta
	if err := c.store.Get(ctx, metaPrefix+key, &meta); err != nil {
		meta = Meta{FirstCached: time.Now(), Provider: provider}
	}
	meta.LastAccessed = time.Now()

	ttl := c.ttlFor(meta.Hits)
	_ = c.store.Set(ctx, entryPrefix+key, resp, ttl)
	_ = c.store.Set(ctx, metaPrefix+key, meta, ttl)
}

func (c *Cache) ttlFor(hits int64) time.Duration {
	base := c.cfg.BaseTTL
	if hits >= c.cfg.PopularThreshold {
		base = c.cfg.PopularTTL
	}
	jitter := 1 + rand.Float64()*c.cfg.TTLJitter
	return time.Duration(float64(base) * jitter)
}

func (c *Cache) Invalidate(ctx context.Context, query string, filters search.SearchFilters, provider string) {
	key := Fingerprint(query, filters, provider)
	_ = c.store.Delete(ctx, entryPrefix+key)
	_ = c.store.Delete(ctx, metaPrefix+key)
}

func (c *Cache) InvalidateAll(ctx context.Context) {
	_ = c.store.DeletePattern(ctx, entryPrefix+"*")
	_ = c.store.DeletePattern(ctx, metaPrefix+"*")
}
