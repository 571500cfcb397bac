package pipeline

import (
	"context"

	"github.com/briefloop/researchcore/llm"
)

// ReportStageInput is step 9's input: everything gathered so far,
// conforming to the fixed output contract (sections, references list, no
// inline [n] markers, natural attribution — §4.F step 9).
type ReportStageInput struct {
	Description string
	Analysis    llm.AnalysisResponse
	Items       []llm.ScoredItem
	Sources     map[string]llm.ExtractedItem
	Clusters    []llm.TopicCluster // non-empty only when clustering ran
}

// ReportStage compiles the final markdown report. When both clustering
// capabilities are present (DESIGN.md OQ 3), it calls the
// clustering-aware variant instead; retry-with-backoff (up to 3 attempts)
// is already handled inside the Router-dispatched provider for both paths.
type ReportStage struct {
	compiler          llm.ReportCompiler
	clusteredCompiler llm.ClusteredReportCompiler // nil unless the capability probe succeeded
}

func NewReportStage(compiler llm.ReportCompiler, clusteredCompiler llm.ClusteredReportCompiler) *ReportStage {
	return &ReportStage{compiler: compiler, clusteredCompiler: clusteredCompiler}
}

func (s *ReportStage) Run(ctx context.Context, in ReportStageInput) (llm.ReportResponse, error) {
	base := llm.ReportRequest{
		Description: in.Description,
		Analysis:    in.Analysis,
		Items:       in.Items,
		Sources:     in.Sources,
	}
	if s.clusteredCompiler != nil && len(in.Clusters) > 0 {
		return s.clusteredCompiler.CompileClusteredReport(ctx, llm.ClusteredReportRequest{
			ReportRequest: base,
			Clusters:      in.Clusters,
		})
	}
	return s.compiler.Call(ctx, base)
}

var _ Stage[ReportStageInput, llm.ReportResponse] = (*ReportStage)(nil)
