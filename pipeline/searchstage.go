package pipeline

import (
	"context"
	"log/slog"

	"github.com/briefloop/researchcore/cache/searchcache"
	"github.com/briefloop/researchcore/llm"
	"github.com/briefloop/researchcore/pkg/result"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/search"
)

// SearchStageInput is step 3's input: the generated queries plus the
// per-stage filter defaults derived from the project's search parameters.
type SearchStageInput struct {
	Queries         []llm.GeneratedQuery
	Params          project.SearchParameters
	ResultsPerQuery int
}

// SearchStageOutput is the URL-deduplicated union of every query's results
// (§4.F step 3: "Map merges all results").
type SearchStageOutput struct {
	Items      map[string]search.SearchResultItem // URL -> item
	QueryCount int

	// QueryResults carries one outcome per query: a failed provider call, an
	// empty-but-successful response, and a response with items are three
	// distinct states worth keeping apart for the stats summary (§3
	// StatsSummary) rather than collapsing all three into "items merged."
	QueryResults []result.Result[search.SearchResponse]
}

// defaultFreshness is the per-stage default search.Freshness applied when
// a project hasn't set DateRangePreference (§4.F step 3 example).
const defaultFreshness = search.FreshnessPastWeek

// SearchStage runs each generated query through the cache + semantic dedup
// layer (§4.D) in front of the multi-provider orchestrator (§4.E).
type SearchStage struct {
	cache      *searchcache.Cache
	dedup      *searchcache.Dedup // nil when semantic dedup is disabled
	capability search.Capability
}

func NewSearchStage(cache *searchcache.Cache, dedup *searchcache.Dedup, capability search.Capability) *SearchStage {
	return &SearchStage{cache: cache, dedup: dedup, capability: capability}
}

func (s *SearchStage) filtersFor(in SearchStageInput) search.SearchFilters {
	f := search.SearchFilters{
		Count:          in.ResultsPerQuery,
		Country:        in.Params.Region,
		Language:       in.Params.Language,
		Freshness:      defaultFreshness,
		IncludeDomains: in.Params.PriorityDomains,
		ExcludeDomains: in.Params.ExcludedDomains,
	}
	if in.Params.DateRangePreference != "" {
		f.Freshness = search.Freshness(in.Params.DateRangePreference)
	}
	f.Normalize()
	return f
}

func (s *SearchStage) Run(ctx context.Context, in SearchStageInput) (SearchStageOutput, error) {
	out := SearchStageOutput{Items: make(map[string]search.SearchResultItem), QueryCount: len(in.Queries)}
	filters := s.filtersFor(in)

	for _, q := range in.Queries {
		resp, err := searchcache.CachedSearch(ctx, s.cache, s.dedup, s.capability, q.Query, filters)
		if err != nil {
			slog.Warn("pipeline: search query failed", slog.String("query", q.Query), slog.String("err", err.Error()))
			out.QueryResults = append(out.QueryResults, result.Error[search.SearchResponse](err))
			continue
		}
		out.QueryResults = append(out.QueryResults, result.Value(*resp))
		for _, item := range resp.Items {
			out.Items[item.URL] = item
		}
	}
	return out, nil
}

// FailedQueryCount reports how many of this stage's queries errored outright
// rather than merely returning zero items.
func (o SearchStageOutput) FailedQueryCount() int {
	n := 0
	for _, r := range o.QueryResults {
		if r.Error() != nil {
			n++
		}
	}
	return n
}

var _ Stage[SearchStageInput, SearchStageOutput] = (*SearchStage)(nil)
