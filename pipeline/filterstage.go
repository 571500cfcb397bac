package pipeline

import (
	"context"
	"log/slog"

	"github.com/briefloop/researchcore/llm"
	"github.com/briefloop/researchcore/search"
)

// FilterStageInput is step 4's input: title+snippet only, no fetched
// content yet (§4.F step 4).
type FilterStageInput struct {
	Description string
	Items       map[string]search.SearchResultItem // URL -> item
}

// FilterStage asks the LLM to cull obviously irrelevant URLs. It is
// best-effort: a failure (or an empty KeepURLs list, which would otherwise
// read as "drop everything") keeps the full candidate set rather than
// failing the pipeline.
type FilterStage struct {
	filterer llm.ResultFilterer
}

func NewFilterStage(filterer llm.ResultFilterer) *FilterStage {
	return &FilterStage{filterer: filterer}
}

func (s *FilterStage) Run(ctx context.Context, in FilterStageInput) ([]string, error) {
	all := make([]string, 0, len(in.Items))
	for url := range in.Items {
		all = append(all, url)
	}
	if s.filterer == nil || len(all) == 0 {
		return all, nil
	}

	candidates := make([]llm.FilterCandidate, 0, len(in.Items))
	for _, item := range in.Items {
		candidates = append(candidates, llm.FilterCandidate{URL: item.URL, Title: item.Title, Snippet: item.Description})
	}

	resp, err := s.filterer.Call(ctx, llm.ResultFilterRequest{Description: in.Description, Items: candidates})
	if err != nil {
		slog.Warn("pipeline: result filtering failed, keeping all candidates", slog.String("err", err.Error()))
		return all, nil
	}
	if len(resp.KeepURLs) == 0 {
		return all, nil
	}
	return resp.KeepURLs, nil
}

var _ Stage[FilterStageInput, []string] = (*FilterStage)(nil)
