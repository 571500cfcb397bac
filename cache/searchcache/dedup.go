package searchcache

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/search"
)

const (
	embeddingPrefix            = "dedup:embedding:"
	windowIndexKey             = "dedup:window"
	defaultSimilarityThreshold = 0.85
)

// Embedder is the narrow capability semantic dedup needs from the LLM
// Abstraction (§4.C): turn a query into a vector. Defined here, at the
// point of use, rather than imported from llm, so this package does not
// depend on the whole LLM capability surface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DedupConfig mirrors §4.D's semantic-dedup parameters.
type DedupConfig struct {
	WindowHours         float64
	SimilarityThreshold float64 // default 0.85
}

type embeddingEntry struct {
	Query     string
	Embedding []float32
	Timestamp time.Time
	Filters   filterSummary
	CacheKey  string
}

// filterSummary is the {freshness,country,language,count} subset that must
// match for a semantic-dedup hit (§4.D), independent of domain/keyword lists.
type filterSummary struct {
	Freshness string
	Country   string
	Language  string
	Count     int
}

func summarize(f search.SearchFilters) filterSummary {
	return filterSummary{Freshness: string(f.Freshness), Country: f.Country, Language: f.Language, Count: f.Count}
}

// Dedup is the semantic-dedup index. It fails open: any embedding or
// comparison error returns ("", false) so the caller proceeds with a live
// search rather than propagating an error (§4.D "must fail open").
type Dedup struct {
	store    cache.Store
	window   cache.WindowIndex
	embedder Embedder
	cfg      DedupConfig
}

func NewDedup(store cache.Store, window cache.WindowIndex, embedder Embedder, cfg DedupConfig) *Dedup {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = defaultSimilarityThreshold
	}
	return &Dedup{store: store, window: window, embedder: embedder, cfg: cfg}
}

// Lookup returns the cache key of a semantically equivalent prior query,
// if one exists in the recency window with cosine similarity at or above
// the threshold and an equivalent filter summary. On any failure it returns
// ("", false) rather than an error.
func (d *Dedup) Lookup(ctx context.Context, query string, filters search.SearchFilters) (cacheKey string, ok bool) {
	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return "", false
	}

	now := time.Now()
	windowStart := now.Add(-time.Duration(d.cfg.WindowHours * float64(time.Hour))).Unix()
	_ = d.window.ZRemRangeByScore(ctx, windowIndexKey, math.Inf(-1), float64(windowStart))

	ids, err := d.window.ZRangeByScore(ctx, windowIndexKey, float64(windowStart), math.Inf(1))
	if err != nil {
		return "", false
	}

	wantFilters := summarize(filters)
	bestScore := -1.0
	var bestEntry *embeddingEntry
	for _, id := range ids {
		var entry embeddingEntry
		if err := d.store.Get(ctx, embeddingPrefix+id, &entry); err != nil {
			continue
		}
		if entry.Filters != wantFilters {
			continue
		}
		score := cosineSimilarity(embedding, entry.Embedding)
		if score > bestScore {
			bestScore = score
			e := entry
			bestEntry = &e
		}
	}

	if bestEntry == nil || bestScore < d.cfg.SimilarityThreshold {
		return "", false
	}
	return bestEntry.CacheKey, true
}

// Store records this query's embedding in the window index, associated
// with the cache key the live search result was written under.
func (d *Dedup) Store(ctx context.Context, query string, filters search.SearchFilters, cacheKey string) {
	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return
	}
	d.persist(ctx, query, embedding, filters, cacheKey)
}

func (d *Dedup) persist(ctx context.Context, query string, embedding []float32, filters search.SearchFilters, cacheKey string) {
	id := cache.HashKey(fmt.Sprintf("%s|%d", strings.ToLower(query), time.Now().UnixNano()))
	entry := embeddingEntry{
		Query:     query,
		Embedding: embedding,
		Timestamp: time.Now(),
		Filters:   summarize(filters),
		CacheKey:  cacheKey,
	}
	ttl := time.Duration(d.cfg.WindowHours * float64(time.Hour))
	_ = d.store.Set(ctx, embeddingPrefix+id, entry, ttl)
	_ = d.window.ZAdd(ctx, windowIndexKey, float64(time.Now().Unix()), id)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
