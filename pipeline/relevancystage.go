package pipeline

import (
	"context"

	"github.com/briefloop/researchcore/llm"
)

// RelevancyStageInput is step 6's input: the extracted items plus the
// project description and the relevancy threshold (default 60, §6
// pipeline.relevancyThreshold).
type RelevancyStageInput struct {
	Description string
	Items       []llm.ExtractedItem
	Threshold   int
}

// RelevancyStage scores each extracted item 0-100 against the description;
// items at or above Threshold survive. Retry on format failure is already
// handled inside the Router-dispatched provider.
type RelevancyStage struct {
	scorer llm.RelevancyScorer
}

func NewRelevancyStage(scorer llm.RelevancyScorer) *RelevancyStage {
	return &RelevancyStage{scorer: scorer}
}

func (s *RelevancyStage) Run(ctx context.Context, in RelevancyStageInput) ([]llm.ScoredItem, error) {
	resp, err := s.scorer.Call(ctx, llm.RelevancyRequest{Description: in.Description, Items: in.Items})
	if err != nil {
		return nil, err
	}
	out := make([]llm.ScoredItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Score >= in.Threshold {
			out = append(out, item)
		}
	}
	return out, nil
}

var _ Stage[RelevancyStageInput, []llm.ScoredItem] = (*RelevancyStage)(nil)
