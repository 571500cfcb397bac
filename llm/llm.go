// Package llm is the LLM Abstraction (§4.C): one typed capability per
// pipeline operation, each a CallHandler[Request, Response] in the
// teacher's ai/model.CallHandler shape, generalized from a single
// conversational-chat abstraction to the fixed set of research-pipeline
// operations this domain needs.
package llm

import "context"

// CallHandler executes a single request/response operation against a model.
// Grounded on Tangerg-lynx's ai/model.CallHandler[Request, Response]: same
// generic shape, used here for query generation, filtering, scoring,
// clustering, analysis, compilation, summarization, and translation instead
// of open-ended chat.
type CallHandler[Request any, Response any] interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// CallHandlerFunc adapts a plain function to CallHandler, mirroring
// ai/model.CallHandlerFunc.
type CallHandlerFunc[Request any, Response any] func(ctx context.Context, req Request) (Response, error)

func (f CallHandlerFunc[Request, Response]) Call(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// QueryGenerator is pipeline step 2.
type QueryGenerator = CallHandler[QueryGenerationRequest, QueryGenerationResponse]

// ResultFilterer is pipeline step 4.
type ResultFilterer = CallHandler[ResultFilterRequest, ResultFilterResponse]

// RelevancyScorer is pipeline step 6.
type RelevancyScorer = CallHandler[RelevancyRequest, RelevancyResponse]

// TopicClusterer is the optional pipeline step 7. Implementing it is an
// opt-in capability probed for at runtime (see Router.Clustering, DESIGN.md OQ 3):
// a vendor variant that doesn't support clustering simply doesn't implement
// this interface, and the pipeline runs without it.
type TopicClusterer interface {
	ClusterByTopic(ctx context.Context, req ClusterRequest) (ClusterResponse, error)
}

// ClusteredReportCompiler is the clustering-aware counterpart to
// ReportCompiler, also gated behind the same capability probe.
type ClusteredReportCompiler interface {
	CompileClusteredReport(ctx context.Context, req ClusteredReportRequest) (ReportResponse, error)
}

// CrossSourceAnalyzer is pipeline step 8.
type CrossSourceAnalyzer = CallHandler[AnalysisRequest, AnalysisResponse]

// ReportCompiler is pipeline step 9.
type ReportCompiler = CallHandler[ReportRequest, ReportResponse]

// Translator is pipeline step 10.
type Translator = CallHandler[TranslationRequest, TranslationResponse]

// Embedder turns text into a vector, used by the semantic-dedup index
// (§4.D) and nothing else. The method
// name (Embed, not Call) is deliberate: it satisfies
// cache/searchcache.Embedder structurally without that package importing
// this one.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

