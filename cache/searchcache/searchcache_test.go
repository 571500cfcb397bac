package searchcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/search"
)

func newTestStore(t *testing.T) *cache.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewFromClient(client)
}

func testConfig() Config {
	return Config{
		BaseTTL:          time.Minute,
		PopularTTL:       time.Hour,
		TTLJitter:        0,
		PopularThreshold: 3,
	}
}

func TestCacheMissThenHit(t *testing.T) {
	store := newTestStore(t)
	c := New(store, testConfig())
	ctx := context.Background()
	filters := search.SearchFilters{Count: 10}

	_, ok := c.Get(ctx, "best go orms", filters, "serper")
	require.False(t, ok)

	resp := &search.SearchResponse{Query: "best go orms", Provider: "serper"}
	c.Set(ctx, "best go orms", filters, "serper", resp)

	got, ok := c.Get(ctx, "best go orms", filters, "serper")
	require.True(t, ok)
	require.Equal(t, "best go orms", got.Query)
}

func TestCachePromotesToPopularTTLAfterThreshold(t *testing.T) {
	store := newTestStore(t)
	c := New(store, testConfig())
	ctx := context.Background()
	filters := search.SearchFilters{Count: 10}

	c.Set(ctx, "q", filters, "serper", &search.SearchResponse{Query: "q"})
	for i := 0; i < 4; i++ {
		_, ok := c.Get(ctx, "q", filters, "serper")
		require.True(t, ok)
	}

	key := Fingerprint("q", filters, "serper")
	d, ok, err := store.TTL(ctx, metaPrefix+key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, d, 5*time.Minute)
}

func TestFingerprintIgnoresDomainOrderAndQueryCase(t *testing.T) {
	f1 := search.SearchFilters{Count: 10, IncludeDomains: []string{"a.com", "b.com"}}
	f2 := search.SearchFilters{Count: 10, IncludeDomains: []string{"b.com", "a.com"}}

	require.Equal(t, Fingerprint("Hello World", f1, "serper"), Fingerprint("  hello world  ", f2, "serper"))
}

func TestInvalidateRemovesEntryAndMeta(t *testing.T) {
	store := newTestStore(t)
	c := New(store, testConfig())
	ctx := context.Background()
	filters := search.SearchFilters{Count: 10}

	c.Set(ctx, "q", filters, "serper", &search.SearchResponse{Query: "q"})
	c.Invalidate(ctx, "q", filters, "serper")

	_, ok := c.Get(ctx, "q", filters, "serper")
	require.False(t, ok)
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestDedupLookupMissesOnFirstQuery(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"golang orm comparison": {1, 0, 0}}}
	d := NewDedup(store, store, embedder, DedupConfig{WindowHours: 1})

	_, ok := d.Lookup(context.Background(), "golang orm comparison", search.SearchFilters{Count: 10})
	require.False(t, ok)
}

func TestDedupLookupHitsOnSimilarQuery(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"best golang orm libraries":  {1, 0, 0},
		"top golang orm frameworks":  {0.99, 0.01, 0},
	}}
	d := NewDedup(store, store, embedder, DedupConfig{WindowHours: 1, SimilarityThreshold: 0.9})
	ctx := context.Background()
	filters := search.SearchFilters{Count: 10}

	d.Store(ctx, "best golang orm libraries", filters, "cachekey123")

	key, ok := d.Lookup(ctx, "top golang orm frameworks", filters)
	require.True(t, ok)
	require.Equal(t, "cachekey123", key)
}

func TestDedupLookupMissesOnDifferentFilters(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	d := NewDedup(store, store, embedder, DedupConfig{WindowHours: 1, SimilarityThreshold: 0.5})
	ctx := context.Background()

	d.Store(ctx, "q", search.SearchFilters{Count: 10, Country: "us"}, "cachekey123")

	_, ok := d.Lookup(ctx, "q", search.SearchFilters{Count: 10, Country: "de"})
	require.False(t, ok)
}

func TestDedupFailsOpenOnEmbedderError(t *testing.T) {
	store := newTestStore(t)
	d := NewDedup(store, store, failingEmbedder{}, DedupConfig{WindowHours: 1})

	_, ok := d.Lookup(context.Background(), "q", search.SearchFilters{Count: 10})
	require.False(t, ok)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errEmbedFailed
}

var errEmbedFailed = &embedErr{"embedding provider unavailable"}

type embedErr struct{ msg string }

func (e *embedErr) Error() string { return e.msg }

func TestCachedSearchUsesDedupOnQueryVariant(t *testing.T) {
	store := newTestStore(t)
	c := New(store, testConfig())
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"golang concurrency patterns": {1, 0, 0},
		"go concurrency idioms":       {0.98, 0.02, 0},
	}}
	d := NewDedup(store, store, embedder, DedupConfig{WindowHours: 1, SimilarityThreshold: 0.9})
	ctx := context.Background()
	filters := search.SearchFilters{Count: 10}

	calls := 0
	stub := &stubCapability{fn: func(q string) (*search.SearchResponse, error) {
		calls++
		return &search.SearchResponse{Query: q, Provider: "serper"}, nil
	}}

	_, err := CachedSearch(ctx, c, d, stub, "golang concurrency patterns", filters)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	resp, err := CachedSearch(ctx, c, d, stub, "go concurrency idioms", filters)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "semantically equivalent query should reuse the cached result")
	require.Equal(t, "golang concurrency patterns", resp.Query)
}

type stubCapability struct {
	fn func(string) (*search.SearchResponse, error)
}

func (s *stubCapability) Name() string { return "serper" }
func (s *stubCapability) Search(_ context.Context, query string, _ search.SearchFilters) (*search.SearchResponse, error) {
	return s.fn(query)
}
func (s *stubCapability) SearchMultiple(ctx context.Context, queries []string, filters search.SearchFilters) (map[string]*search.SearchResponse, error) {
	return search.BaseSearchMultiple(ctx, s, queries, filters)
}
