package llm

import "time"

// QueryGenerationRequest is pipeline step 2's input: the project's
// description and search parameters, the current date (so "this week"-style
// queries anchor correctly), and how many queries to produce.
type QueryGenerationRequest struct {
	Description      string
	PriorityDomains  []string
	ExcludedDomains  []string
	RequiredKeywords []string
	ExcludedKeywords []string
	Now              time.Time
	Count            int
}

// QueryStrategy classifies a generated query along §4.F step 2's four
// required strategies.
type QueryStrategy string

const (
	StrategyBroad    QueryStrategy = "broad"
	StrategySpecific QueryStrategy = "specific"
	StrategyQuestion QueryStrategy = "question"
	StrategyTemporal QueryStrategy = "temporal"
)

type GeneratedQuery struct {
	Query    string
	Strategy QueryStrategy
}

type QueryGenerationResponse struct {
	Queries []GeneratedQuery
}

// ResultFilterRequest is pipeline step 4's input: title+snippet only, no
// fetched content yet.
type ResultFilterRequest struct {
	Description string
	Items       []FilterCandidate
}

type FilterCandidate struct {
	URL     string
	Title   string
	Snippet string
}

type ResultFilterResponse struct {
	// KeepURLs is the surviving subset of FilterCandidate.URL. Absent URLs
	// are dropped. Step 4 is best-effort: on any error the caller keeps the
	// full candidate set rather than treating an empty KeepURLs as "drop
	// everything".
	KeepURLs []string
}

// ExtractedItem is pipeline step 5's output per surviving URL.
type ExtractedItem struct {
	URL           string
	Title         string
	Snippet       string
	PublishedDate *time.Time
	FetchStatus   string // "ok" or a short failure reason; failed items are dropped before step 6
}

// RelevancyRequest is pipeline step 6's input: the extracted items to score
// in one batch, against the project description.
type RelevancyRequest struct {
	Description string
	Items       []ExtractedItem
}

type ScoredItem struct {
	URL       string
	Score     int // 0-100
	KeyPoints []string
}

type RelevancyResponse struct {
	Items []ScoredItem
}

// ClusterRequest is the optional step 7 input: relevant items plus the score
// map already computed by step 6.
type ClusterRequest struct {
	Description string
	Items       []ScoredItem
}

type TopicCluster struct {
	Topic   string
	Primary string   // URL of the cluster's representative item
	Related []string // URLs of the remaining cluster members
}

type ClusterResponse struct {
	Clusters []TopicCluster
}

// AnalysisRequest is pipeline step 8's input.
type AnalysisRequest struct {
	Description string
	Items       []ScoredItem
	Clusters    []TopicCluster // empty when clustering did not run
}

type AnalysisResponse struct {
	Themes         []string
	Connections    []string
	Contradictions []string
	UniqueInsights []string
	Narrative      string
}

// ReportRequest is pipeline step 9's input: everything gathered so far,
// conforming to the fixed output contract (§4.F step 9: sections,
// references list, no inline [n] markers, natural attribution).
type ReportRequest struct {
	Description string
	Analysis    AnalysisResponse
	Items       []ScoredItem
	Sources     map[string]ExtractedItem // URL -> item, for the references list
}

// ClusteredReportRequest is the clustering-aware variant of ReportRequest,
// used only when both TopicClusterer and ClusteredReportCompiler are
// implemented by the active provider (DESIGN.md OQ 3).
type ClusteredReportRequest struct {
	ReportRequest
	Clusters []TopicCluster
}

type ReportResponse struct {
	Markdown string
	Title    string
	Summary  string
}

// TranslationRequest is pipeline step 10's input. Kind distinguishes the
// long-form body from the short title/summary pair. It reaches the model
// only as a line of the prompt text: both kinds are sent with the same
// token limit, and the summary call has no cap of its own.
type TranslationKind string

const (
	TranslationBody    TranslationKind = "body"
	TranslationSummary TranslationKind = "summary"
)

type TranslationRequest struct {
	Text           string
	Kind           TranslationKind
	TargetLanguage string // ISO 639-1, already whitelist-checked by the caller
}

type TranslationResponse struct {
	Text string
}
