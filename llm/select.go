package llm

// Task names the six model-selection keys from §6 (models.<task>.model).
type Task string

const (
	TaskQueryGeneration     Task = "queryGeneration"
	TaskSearchFiltering     Task = "searchFiltering"
	TaskRelevancyAnalysis   Task = "relevancyAnalysis"
	TaskCrossSourceAnalysis Task = "crossSourceAnalysis"
	TaskReportCompilation   Task = "reportCompilation"
	TaskReportSummary       Task = "reportSummary"
)

// ModelSpec is the per-task configuration the pipeline reads out of
// config.ModelsConfig and hands to a Router.
type ModelSpec struct {
	Model          string
	Temperature    float64
	ResponseFormat string // "json" or "text"
}

// Router dispatches each task to whichever vendor backend config assigns
// it (§6: "selected per models.<task>.model the same way the teacher
// selects providers" — Tangerg-lynx's client construction always takes an
// explicit model string per call rather than a client-wide default, so
// picking a vendor per task is just picking which client serves that
// model name). Anthropic model names all start with "claude-"; everything
// else routes to OpenAI.
type Router struct {
	openai    *OpenAIProvider
	anthropic *AnthropicProvider
}

func NewRouter(openai *OpenAIProvider, anthropic *AnthropicProvider) *Router {
	return &Router{openai: openai, anthropic: anthropic}
}

func isClaudeModel(model string) bool {
	return len(model) >= 7 && model[:7] == "claude-"
}

func (r *Router) QueryGenerator(spec ModelSpec) QueryGenerator {
	if isClaudeModel(spec.Model) {
		return r.anthropic.QueryGenerator(spec)
	}
	return r.openai.QueryGenerator(spec)
}

func (r *Router) ResultFilterer(spec ModelSpec) ResultFilterer {
	if isClaudeModel(spec.Model) {
		return r.anthropic.ResultFilterer(spec)
	}
	return r.openai.ResultFilterer(spec)
}

func (r *Router) RelevancyScorer(spec ModelSpec) RelevancyScorer {
	if isClaudeModel(spec.Model) {
		return r.anthropic.RelevancyScorer(spec)
	}
	return r.openai.RelevancyScorer(spec)
}

func (r *Router) CrossSourceAnalyzer(spec ModelSpec) CrossSourceAnalyzer {
	if isClaudeModel(spec.Model) {
		return r.anthropic.CrossSourceAnalyzer(spec)
	}
	return r.openai.CrossSourceAnalyzer(spec)
}

func (r *Router) ReportCompiler(spec ModelSpec) ReportCompiler {
	if isClaudeModel(spec.Model) {
		return r.anthropic.ReportCompiler(spec)
	}
	return r.openai.ReportCompiler(spec)
}

func (r *Router) Translator(spec ModelSpec) Translator {
	if isClaudeModel(spec.Model) {
		return r.anthropic.Translator(spec)
	}
	return r.openai.Translator(spec)
}

// Clustering returns the active clustering capability pair for the given
// spec's vendor, or (nil, nil, false) when that vendor doesn't implement
// both halves — the pipeline's capability probe (DESIGN.md OQ 3). Neither
// vendor variant in this repo implements them, so this always returns
// false; the method exists so a future vendor can opt in without any
// pipeline change.
func (r *Router) Clustering(spec ModelSpec) (TopicClusterer, ClusteredReportCompiler, bool) {
	var p any = r.openai
	if isClaudeModel(spec.Model) {
		p = r.anthropic
	}
	clusterer, ok1 := p.(TopicClusterer)
	compiler, ok2 := p.(ClusteredReportCompiler)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	return clusterer, compiler, true
}
