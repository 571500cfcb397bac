package pipeline

import (
	"context"

	"github.com/briefloop/researchcore/llm"
)

// AnalysisStageInput is step 8's input: the relevant items (and, when
// clustering ran, the cluster structure).
type AnalysisStageInput struct {
	Description string
	Items       []llm.ScoredItem
	Clusters    []llm.TopicCluster
}

// AnalysisStage produces the cross-source analysis object: themes,
// connections, contradictions, unique insights, overall narrative.
type AnalysisStage struct {
	analyzer llm.CrossSourceAnalyzer
}

func NewAnalysisStage(analyzer llm.CrossSourceAnalyzer) *AnalysisStage {
	return &AnalysisStage{analyzer: analyzer}
}

func (s *AnalysisStage) Run(ctx context.Context, in AnalysisStageInput) (llm.AnalysisResponse, error) {
	return s.analyzer.Call(ctx, llm.AnalysisRequest{
		Description: in.Description,
		Items:       in.Items,
		Clusters:    in.Clusters,
	})
}

var _ Stage[AnalysisStageInput, llm.AnalysisResponse] = (*AnalysisStage)(nil)
