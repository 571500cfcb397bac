package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/briefloop/researchcore/llm"
	"github.com/briefloop/researchcore/project"
)

// QueryGenInput is step 2's input (§4.F step 2).
type QueryGenInput struct {
	Description string
	Params      project.SearchParameters
	Count       int
	Now         time.Time
}

// QueryGenStage asks the LLM for N diverse queries across the four
// required strategies. Retry-on-parse-failure (up to 3 attempts) is
// already handled inside the Router-dispatched provider (llm.withRetry),
// so this stage is a thin typed wrapper, not a second retry loop.
type QueryGenStage struct {
	gen llm.QueryGenerator
}

func NewQueryGenStage(gen llm.QueryGenerator) *QueryGenStage {
	return &QueryGenStage{gen: gen}
}

func (s *QueryGenStage) Run(ctx context.Context, in QueryGenInput) ([]llm.GeneratedQuery, error) {
	resp, err := s.gen.Call(ctx, llm.QueryGenerationRequest{
		Description:      in.Description,
		PriorityDomains:  in.Params.PriorityDomains,
		ExcludedDomains:  in.Params.ExcludedDomains,
		RequiredKeywords: in.Params.RequiredKeywords,
		ExcludedKeywords: in.Params.ExcludedKeywords,
		Now:              in.Now,
		Count:            in.Count,
	})
	if err != nil {
		return nil, err
	}
	// A model asked for N diverse queries occasionally emits the same text
	// twice under different strategies; dedup before the search stage fans
	// out so QueryCount/FailedQueryCount reflect distinct searches only.
	return lo.UniqBy(resp.Queries, func(q llm.GeneratedQuery) string {
		return strings.ToLower(strings.TrimSpace(q.Query))
	}), nil
}

var _ Stage[QueryGenInput, []llm.GeneratedQuery] = (*QueryGenStage)(nil)
